package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"agendly/pkg/kafka"
	"agendly/pkg/logger"
)

func TestMetricsProducerMiddleware(t *testing.T) {
	metrics := NewMetrics()
	mw := metrics.ProducerMiddleware()
	msg := kafka.NewMessage().WithKey("k").Build()

	_ = mw(context.Background(), msg, func(ctx context.Context, msg kafka.Message) error { return nil })
	_ = mw(context.Background(), msg, func(ctx context.Context, msg kafka.Message) error { return errors.New("boom") })

	snap := metrics.Snapshot()
	if snap.Published != 1 || snap.Failed != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLoggingProducerMiddleware_PassesErrorThrough(t *testing.T) {
	mw := LoggingProducerMiddleware(logger.Discard())
	want := errors.New("broker down")

	err := mw(context.Background(), kafka.NewMessage().WithKey("k").Build(), func(ctx context.Context, msg kafka.Message) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}
