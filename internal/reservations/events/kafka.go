package events

import (
	"context"
	"encoding/json"

	"agendly/pkg/kafka"
	"agendly/pkg/model"
)

const SchemaVersion = "1"

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaEventPublisher publishes reservation lifecycle events keyed by
// tenant, so a tenant's events stay ordered within one partition.
type KafkaEventPublisher struct {
	producer Publisher
	source   string
}

func NewKafkaEventPublisher(producer Publisher, source string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		source:   source,
	}
}

func (p *KafkaEventPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.NewPermanentError("failed to encode reservation event", err)
	}

	msg := kafka.NewMessage().
		WithKey(event.TenantID).
		WithRawValue(payload).
		WithEventID("").
		WithEventType(string(event.Type)).
		WithCorrelationID(event.ReservationID).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithTimestamp(event.OccurredAt).
		Build()

	return p.producer.Publish(ctx, msg)
}
