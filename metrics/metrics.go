// Package metrics provides a dialogue.Storage decorator that records
// operation counts and latencies through the OpenTelemetry metric API.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creastat/dialogue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scope = "github.com/creastat/dialogue/metrics"

// Outcome values of the "outcome" attribute.
const (
	OutcomeOK           = "ok"
	OutcomeAbsent       = "absent"
	OutcomeClosed       = "closed"
	OutcomeCanceled     = "canceled"
	OutcomeBackendError = "backend_error"
)

type instruments struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments(provider metric.MeterProvider) (*instruments, error) {
	meter := provider.Meter(scope)

	operations, err := meter.Int64Counter("dialogue.storage.operations",
		metric.WithDescription("Dialogue storage operations by kind and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}

	duration, err := meter.Float64Histogram("dialogue.storage.duration",
		metric.WithDescription("Dialogue storage operation latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &instruments{operations: operations, duration: duration}, nil
}

// Storage wraps a dialogue.Storage and measures each operation.
type Storage[D any] struct {
	inner dialogue.Storage[D]
	inst  *instruments
}

// New wraps inner with instruments created from provider.
func New[D any](inner dialogue.Storage[D], provider metric.MeterProvider) (*Storage[D], error) {
	inst, err := newInstruments(provider)
	if err != nil {
		return nil, err
	}
	return &Storage[D]{inner: inner, inst: inst}, nil
}

// Decorator creates the instruments once and returns a dialogue.Decorator
// sharing them between every store it wraps.
func Decorator[D any](provider metric.MeterProvider) (dialogue.Decorator[D], error) {
	inst, err := newInstruments(provider)
	if err != nil {
		return nil, err
	}
	return func(inner dialogue.Storage[D]) dialogue.Storage[D] {
		return &Storage[D]{inner: inner, inst: inst}
	}, nil
}

// Inner returns the wrapped store.
func (s *Storage[D]) Inner() dialogue.Storage[D] {
	return s.inner
}

// GetDialogue implements dialogue.Storage.
func (s *Storage[D]) GetDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	start := time.Now()
	d, ok, err := s.inner.GetDialogue(ctx, id)
	s.record(ctx, dialogue.OpGet, start, ok, err)
	return d, ok, err
}

// UpdateDialogue implements dialogue.Storage.
func (s *Storage[D]) UpdateDialogue(ctx context.Context, id dialogue.ChatID, d D) (D, bool, error) {
	start := time.Now()
	prev, existed, err := s.inner.UpdateDialogue(ctx, id, d)
	s.record(ctx, dialogue.OpUpdate, start, true, err)
	return prev, existed, err
}

// RemoveDialogue implements dialogue.Storage.
func (s *Storage[D]) RemoveDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	start := time.Now()
	prev, existed, err := s.inner.RemoveDialogue(ctx, id)
	s.record(ctx, dialogue.OpRemove, start, existed, err)
	return prev, existed, err
}

// Close implements dialogue.Storage.
func (s *Storage[D]) Close() error {
	return s.inner.Close()
}

func (s *Storage[D]) record(ctx context.Context, op string, start time.Time, found bool, err error) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", Outcome(found, err)),
	)
	// Measurements must not depend on the caller's cancellation.
	ctx = context.WithoutCancel(ctx)
	s.inst.operations.Add(ctx, 1, attrs)
	s.inst.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// Outcome classifies the result of one storage call.
func Outcome(found bool, err error) string {
	switch {
	case err == nil && found:
		return OutcomeOK
	case err == nil:
		return OutcomeAbsent
	case errors.Is(err, dialogue.ErrClosed):
		return OutcomeClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeBackendError
	}
}

var _ dialogue.Storage[int] = (*Storage[int])(nil)
