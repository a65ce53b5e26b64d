package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher emits integration events. Implementations must be safe for
// concurrent use. Publishing is best-effort: callers log failures but never
// fail the business operation over them.
type Publisher interface {
	Publish(ctx context.Context, subject, eventType, correlationID string, payload any) error
}

// NATSPublisher publishes envelopes to a NATS connection.
type NATSPublisher struct {
	conn     *nats.Conn
	producer string
}

// NewNATSPublisher wraps an established NATS connection.
func NewNATSPublisher(conn *nats.Conn, producer string) *NATSPublisher {
	if producer == "" {
		producer = "mercato-api"
	}
	return &NATSPublisher{conn: conn, producer: producer}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject, eventType, correlationID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, subject, err)
	}
	return nil
}

// NoopPublisher drops every event. Used in tests and when NATS is not
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject, eventType, correlationID string, payload any) error {
	return nil
}

// LogOnFailure publishes and logs instead of propagating the error.
// Business operations call this so an unreachable broker never turns a
// completed order into a failure.
func LogOnFailure(ctx context.Context, p Publisher, logger *slog.Logger, subject, eventType, correlationID string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, eventType, correlationID, payload); err != nil && logger != nil {
		logger.Warn("event publish failed",
			"subject", subject,
			"event_type", eventType,
			"correlation_id", correlationID,
			"error", err)
	}
}

var _ Publisher = (*NATSPublisher)(nil)
var _ Publisher = NoopPublisher{}
