// Package events carries scheduling domain events from the HTTP handlers to
// downstream consumers through a Postgres outbox and a pluggable transport
// (SQS, Kafka or the log).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// CanonicalEvent is a versioned domain event payload.
type CanonicalEvent interface {
	EventType() string
}

// ShopScoped is implemented by events that belong to one shop; NewEnvelope
// copies the shop id onto the envelope.
type ShopScoped interface {
	EventShopID() string
}

// Envelope wraps a scheduling event with the metadata every transport carries.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	ShopID        string          `json:"shop_id,omitempty"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("events: decode %s: %w", e.EventType, err)
	}
	return nil
}

// EnvelopeOption customizes a generated envelope.
type EnvelopeOption func(*Envelope)

// WithEventID overrides the generated event id.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// WithOccurredAt overrides the time the event is stamped with.
func WithOccurredAt(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

// WithShopID sets the shop for events that do not carry one themselves.
func WithShopID(shopID string) EnvelopeOption {
	return func(e *Envelope) {
		if id := strings.TrimSpace(shopID); id != "" {
			e.ShopID = id
		}
	}
}

const (
	appointmentPrefix = "appointment:"
	shopPrefix        = "shop:"
)

// AppointmentAggregate names the aggregate for appointment events.
func AppointmentAggregate(appointmentID string) string {
	return appointmentPrefix + appointmentID
}

// ShopAggregate names the aggregate for shop-wide events such as hours changes.
func ShopAggregate(shopID string) string {
	return shopPrefix + shopID
}

var (
	errMissingAggregate = errors.New("events: aggregate is required")
	errNilEvent         = errors.New("events: canonical event required")
	nowFunc             = time.Now
)

// NewEnvelope marshals evt and stamps it with a fresh id, the current time and
// the shop the event belongs to.
func NewEnvelope(aggregate, correlationID string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error) {
	aggregate = strings.TrimSpace(aggregate)
	if aggregate == "" {
		return Envelope{}, errMissingAggregate
	}
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, fmt.Errorf("events: event type missing")
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		Aggregate:     aggregate,
		OccurredAt:    nowFunc().UTC(),
		CorrelationID: strings.TrimSpace(correlationID),
		Payload:       payload,
	}
	if scoped, ok := evt.(ShopScoped); ok {
		env.ShopID = strings.TrimSpace(scoped.EventShopID())
	}
	if id, ok := strings.CutPrefix(aggregate, shopPrefix); ok && env.ShopID == "" {
		env.ShopID = id
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AppendCanonicalEvent writes the envelope for evt to the outbox through exec,
// which may be a pool or an open transaction.
func AppendCanonicalEvent(ctx context.Context, exec execer, aggregate, correlationID string, evt CanonicalEvent, opts ...EnvelopeOption) (Envelope, error) {
	if exec == nil {
		return Envelope{}, fmt.Errorf("events: exec required")
	}
	env, err := NewEnvelope(aggregate, correlationID, evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	query := `
		INSERT INTO outbox (id, aggregate, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.Exec(ctx, query, env.EventID, env.Aggregate, env.EventType, data); err != nil {
		return Envelope{}, fmt.Errorf("events: append: %w", err)
	}
	return env, nil
}
