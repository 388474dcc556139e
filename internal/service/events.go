package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradebook-api/internal/middleware"
)

// Event names published by the services.
const (
	EventRosterEvaluated  = "roster.evaluated"
	EventDocumentUploaded = "document.uploaded"
	EventDocumentDeleted  = "document.deleted"
)

// EventPublisher broadcasts domain events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
}

type eventEnvelope struct {
	Type          string      `json:"type"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Payload       interface{} `json:"payload"`
	SentAt        time.Time   `json:"sent_at"`
}

// subjectPublisher is the part of *nats.Conn the publisher needs.
type subjectPublisher interface {
	Publish(subject string, data []byte) error
}

type natsEventPublisher struct {
	conn    subjectPublisher
	subject string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewNATSEventPublisher publishes events on "<subject>.<event>". A nil connection yields a
// publisher that drops events.
func NewNATSEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	var publisher subjectPublisher
	if conn != nil {
		publisher = conn
	}
	return newEventPublisher(publisher, subject, logger)
}

func newEventPublisher(conn subjectPublisher, subject string, logger zerolog.Logger) *natsEventPublisher {
	return &natsEventPublisher{
		conn:    conn,
		subject: strings.Trim(strings.TrimSpace(subject), "."),
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		now:     time.Now,
	}
}

func (p *natsEventPublisher) Publish(ctx context.Context, event string, payload interface{}) error {
	if p.conn == nil || p.subject == "" {
		return nil
	}

	body, err := json.Marshal(eventEnvelope{
		Type:          event,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Payload:       payload,
		SentAt:        p.now().UTC(),
	})
	if err != nil {
		return err
	}

	subject := p.subject + "." + event
	if err := p.conn.Publish(subject, body); err != nil {
		return err
	}
	p.logger.Debug().Str("subject", subject).Msg("event published")
	return nil
}

// publishQuietly logs publication failures instead of failing the calling operation.
func publishQuietly(ctx context.Context, events EventPublisher, logger zerolog.Logger, event string, payload interface{}) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, event, payload); err != nil {
		logger.Warn().Err(err).Str("event", event).Msg("failed to publish event")
	}
}
