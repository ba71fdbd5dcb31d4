package queue

import (
	"context"
	"errors"
)

// Memory is a channel-backed Queue for tests and single-process runs.
type Memory struct {
	jobs chan Job
}

// ErrQueueFull is returned by the memory queue when its buffer is exhausted.
var ErrQueueFull = errors.New("queue buffer full")

// NewMemory creates a memory queue with the given buffer size.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{jobs: make(chan Job, size)}
}

func (m *Memory) Enqueue(ctx context.Context, job Job) error {
	select {
	case m.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *Memory) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-m.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Len reports the number of buffered jobs.
func (m *Memory) Len() int {
	return len(m.jobs)
}
