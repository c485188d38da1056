package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"agendly/pkg/kafka"
	"agendly/pkg/model"
)

type mockPublisher struct {
	published []kafka.Message
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	m.published = append(m.published, msg)
	return m.err
}

func TestPublishReservationEvent(t *testing.T) {
	publisher := &mockPublisher{}
	p := NewKafkaEventPublisher(publisher, "bookings")
	occurred := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	reservation := &model.Reservation{
		ID:       "r1",
		TenantID: "tenant-1",
		StartAt:  occurred.Add(time.Hour),
		EndAt:    occurred.Add(2 * time.Hour),
		Status:   model.StatusConfirmed,
		StaffID:  "staff-a",
	}
	event := model.NewReservationEvent(model.EventReservationCreated, reservation, occurred)

	if err := p.PublishReservationEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one message, got %d", len(publisher.published))
	}

	msg := publisher.published[0]
	if msg.Key != "tenant-1" {
		t.Errorf("key = %s, want tenant id", msg.Key)
	}
	if msg.GetEventType() != string(model.EventReservationCreated) {
		t.Errorf("event type = %s", msg.GetEventType())
	}
	if msg.GetCorrelationID() != "r1" {
		t.Errorf("correlation id = %s", msg.GetCorrelationID())
	}
	if source, _ := msg.GetHeader(kafka.HeaderSource); source != "bookings" {
		t.Errorf("source = %s", source)
	}
	if !msg.Timestamp.Equal(occurred) {
		t.Errorf("timestamp = %s", msg.Timestamp)
	}

	var decoded model.ReservationEvent
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ReservationID != "r1" || decoded.StaffID != "staff-a" || !decoded.StartAt.Equal(reservation.StartAt) {
		t.Errorf("decoded payload = %+v", decoded)
	}
}

func TestPublishReservationEvent_ReturnsProducerError(t *testing.T) {
	want := errors.New("broker down")
	p := NewKafkaEventPublisher(&mockPublisher{err: want}, "bookings")

	err := p.PublishReservationEvent(context.Background(), model.ReservationEvent{TenantID: "t", Type: model.EventReservationCancelled})
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}
