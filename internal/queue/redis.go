package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Queue backed by a redis list. Producers LPUSH, workers BRPOP,
// so jobs come out in enqueue order.
type Redis struct {
	client *redis.Client
	key    string
}

const defaultQueueKey = "tarabar:jobs"

// NewRedis wraps an existing redis client. An empty key selects the
// default list.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = defaultQueueKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	if err := r.client.LPush(ctx, r.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueueing job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue blocks on BRPOP in short intervals so ctx cancellation is
// observed between polls.
func (r *Redis) Dequeue(ctx context.Context) (Job, error) {
	for {
		res, err := r.client.BRPop(ctx, 5*time.Second, r.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return Job{}, ctx.Err()
				}
				continue
			}
			return Job{}, err
		}
		// BRPOP returns [key, value]
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return Job{}, fmt.Errorf("decoding job payload: %w", err)
		}
		return job, nil
	}
}
