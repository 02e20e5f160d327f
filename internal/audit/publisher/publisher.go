// Package publisher fans audit events out to the store and, when configured,
// a Kafka topic. Emission is best-effort beyond the store append: a broker
// outage must never fail the admission decision that produced the event.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"cmdgate/internal/audit"
	id "cmdgate/pkg/domain"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	kafka  *kgo.Client
	topic  string
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithKafka mirrors events to the given topic. The client is owned by the
// caller; Close does not close it.
func WithKafka(client *kgo.Client, topic string) Option {
	return func(p *Publisher) {
		p.kafka = client
		p.topic = topic
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists the event and mirrors it to Kafka when configured. Missing
// ID and timestamp are filled in here so emitters stay terse.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == (id.AuditID{}) {
		event.ID = id.NewAuditID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	if p.kafka != nil {
		value, err := json.Marshal(event)
		if err != nil {
			return err
		}
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(event.ActorID.String()),
			Value: value,
		}
		p.kafka.Produce(ctx, record, func(_ *kgo.Record, err error) {
			if err != nil && p.logger != nil {
				p.logger.Warn("audit kafka produce failed", "action", event.Action, "error", err)
			}
		})
	}
	return nil
}

// List exposes the store's recent events for the admin endpoint.
func (p *Publisher) List(ctx context.Context, offset, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, offset, limit)
}
