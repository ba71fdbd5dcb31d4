package sms

import (
	"context"
	"errors"
	"sync"
)

// LookupCall records one Lookup invocation on the mock.
type LookupCall struct {
	Receptor string
	Token    string
	Token2   string
	Template string
}

// SendCall records one Send invocation on the mock.
type SendCall struct {
	Receptor string
	Message  string
	Sender   string
}

// MockGateway is an in-memory Gateway for tests.
type MockGateway struct {
	mu          sync.Mutex
	LookupCalls []LookupCall
	SendCalls   []SendCall

	SimulateErrors bool

	OnLookup func(receptor, token, token2, template string) error
	OnSend   func(receptor, message, sender string) error
}

// NewMockGateway creates a mock that accepts every message.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Lookup(ctx context.Context, receptor, token, token2, template string) error {
	m.mu.Lock()
	m.LookupCalls = append(m.LookupCalls, LookupCall{Receptor: receptor, Token: token, Token2: token2, Template: template})
	m.mu.Unlock()
	if m.OnLookup != nil {
		return m.OnLookup(receptor, token, token2, template)
	}
	if m.SimulateErrors {
		return errors.New("simulated sms failure")
	}
	return nil
}

func (m *MockGateway) Send(ctx context.Context, receptor, message, sender string) error {
	m.mu.Lock()
	m.SendCalls = append(m.SendCalls, SendCall{Receptor: receptor, Message: message, Sender: sender})
	m.mu.Unlock()
	if m.OnSend != nil {
		return m.OnSend(receptor, message, sender)
	}
	if m.SimulateErrors {
		return errors.New("simulated sms failure")
	}
	return nil
}

var _ Gateway = (*MockGateway)(nil)
