package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DirectRecorder hands events straight to a transport without an outbox.
// Delivery is best effort; it is used when no database is configured.
type DirectRecorder struct {
	handler DeliveryHandler
}

func NewDirectRecorder(handler DeliveryHandler) *DirectRecorder {
	return &DirectRecorder{handler: handler}
}

func (r *DirectRecorder) Append(ctx context.Context, aggregate, correlationID string, evt CanonicalEvent) (Envelope, error) {
	env, err := NewEnvelope(aggregate, correlationID, evt)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	entry := OutboxEntry{
		ID:        env.EventID,
		Aggregate: env.Aggregate,
		Type:      env.EventType,
		Payload:   data,
		CreatedAt: env.OccurredAt,
	}
	if err := r.handler.Handle(ctx, entry); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// MemoryRecorder keeps envelopes in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Envelope
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Append(ctx context.Context, aggregate, correlationID string, evt CanonicalEvent) (Envelope, error) {
	env, err := NewEnvelope(aggregate, correlationID, evt)
	if err != nil {
		return Envelope{}, err
	}
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
	return env, nil
}

// Events returns a copy of everything recorded so far.
func (r *MemoryRecorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}
