package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	err      error
	messages []kafka.Message
	closed   int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublish_WritesMessage(t *testing.T) {
	writer := &fakeWriter{}
	p := newProducer(writer, nil, "reservations.events", "")

	msg := NewMessage().WithKey("tenant-1").WithValue(map[string]string{"id": "r1"}).WithEventType("reservation.created").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	written := writer.messages[0]
	if string(written.Key) != "tenant-1" {
		t.Errorf("key = %s", written.Key)
	}
	if got := header(written, HeaderEventType); got != "reservation.created" {
		t.Errorf("event type header = %q", got)
	}
	if header(written, HeaderEventID) == "" {
		t.Error("expected a generated event id")
	}
}

func TestPublish_RejectsInvalidMessages(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "topic", "")

	tests := []struct {
		name string
		msg  Message
		want error
	}{
		{"empty key", NewMessage().WithRawValue([]byte("{}")).Build(), ErrEmptyKey},
		{"empty value", NewMessage().WithKey("k").Build(), ErrEmptyValue},
		{"unencodable value", NewMessage().WithKey("k").WithValue(make(chan int)).Build(), ErrEmptyValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Publish(context.Background(), tt.msg); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPublish_FailedWriteGoesToDLQ(t *testing.T) {
	writeErr := errors.New("connection reset by peer")
	writer := &fakeWriter{err: writeErr}
	dlq := &fakeWriter{}
	p := newProducer(writer, dlq, "reservations.events", "reservations.events.dlq")

	msg := NewMessage().WithKey("tenant-1").WithRawValue([]byte(`{"id":"r1"}`)).Build()
	err := p.Publish(context.Background(), msg)
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected the write error, got %v", err)
	}

	if len(dlq.messages) != 1 {
		t.Fatalf("expected the message in the DLQ, got %d", len(dlq.messages))
	}
	if got := header(dlq.messages[0], HeaderOriginalTopic); got != "reservations.events" {
		t.Errorf("original topic header = %q", got)
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Error("DLQ headers leaked into the caller's message")
	}
}

func TestPublish_MiddlewareOrder(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "topic", "")
	var calls []string
	for _, name := range []string{"outer", "inner"} {
		p.Use(func(ctx context.Context, msg Message, next func(ctx context.Context, msg Message) error) error {
			calls = append(calls, name)
			return next(ctx, msg)
		})
	}

	msg := NewMessage().WithKey("k").WithRawValue([]byte("{}")).Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || calls[0] != "outer" || calls[1] != "inner" {
		t.Errorf("middleware ran as %v", calls)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	writer := &fakeWriter{}
	dlq := &fakeWriter{}
	p := newProducer(writer, dlq, "topic", "dlq")

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if writer.closed != 1 || dlq.closed != 1 {
		t.Errorf("writers closed %d/%d times", writer.closed, dlq.closed)
	}

	msg := NewMessage().WithKey("k").WithRawValue([]byte("{}")).Build()
	if err := p.Publish(context.Background(), msg); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"network", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"classified", NewPermanentError("bad payload", errors.New("x")), ErrorTypePermanent},
		{"unknown", errors.New("unknown topic or partition"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError = %s, want %s", got, tt.want)
			}
		})
	}
}
