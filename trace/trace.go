// Package trace provides a dialogue.Storage decorator that reports every
// update and removal at trace level.
package trace

import (
	"context"
	"log/slog"

	"github.com/creastat/dialogue"
	"github.com/davecgh/go-spew/spew"
)

// LevelTrace sits below slog.LevelDebug, matching the OTel TRACE range.
const LevelTrace = slog.Level(-8)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Storage wraps a dialogue.Storage and logs dialogue updates and removals.
// Results and errors of the inner store pass through untouched.
type Storage[D any] struct {
	inner  dialogue.Storage[D]
	logger *slog.Logger
}

// New wraps inner. A nil logger uses slog.Default().
func New[D any](inner dialogue.Storage[D], logger *slog.Logger) *Storage[D] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage[D]{inner: inner, logger: logger}
}

// Decorator returns a dialogue.Decorator that wraps stores with New.
func Decorator[D any](logger *slog.Logger) dialogue.Decorator[D] {
	return func(inner dialogue.Storage[D]) dialogue.Storage[D] {
		return New(inner, logger)
	}
}

// Inner returns the wrapped store.
func (s *Storage[D]) Inner() dialogue.Storage[D] {
	return s.inner
}

// GetDialogue implements dialogue.Storage.
func (s *Storage[D]) GetDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	return s.inner.GetDialogue(ctx, id)
}

// UpdateDialogue implements dialogue.Storage. The new value is only rendered
// when trace output is enabled.
func (s *Storage[D]) UpdateDialogue(ctx context.Context, id dialogue.ChatID, d D) (D, bool, error) {
	if !s.logger.Enabled(ctx, LevelTrace) {
		return s.inner.UpdateDialogue(ctx, id, d)
	}

	to := render(d, true)
	prev, existed, err := s.inner.UpdateDialogue(ctx, id, d)
	if err != nil {
		return prev, existed, err
	}

	s.logger.Log(ctx, LevelTrace, "updated dialogue",
		slog.Int64("chat_id", int64(id)),
		slog.String("from", render(prev, existed)),
		slog.String("to", to),
	)
	return prev, existed, nil
}

// RemoveDialogue implements dialogue.Storage.
func (s *Storage[D]) RemoveDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	s.logger.Log(ctx, LevelTrace, "removing dialogue", slog.Int64("chat_id", int64(id)))
	return s.inner.RemoveDialogue(ctx, id)
}

// Close implements dialogue.Storage.
func (s *Storage[D]) Close() error {
	return s.inner.Close()
}

func render[D any](d D, ok bool) string {
	if !ok {
		return "<none>"
	}
	return dumper.Sdump(d)
}

var _ dialogue.Storage[int] = (*Storage[int])(nil)
