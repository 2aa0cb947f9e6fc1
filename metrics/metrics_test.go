package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/drivers"
	"github.com/creastat/dialogue/internal/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// brokenStore fails every operation with the same error value.
type brokenStore struct {
	err error
}

func (s brokenStore) GetDialogue(context.Context, dialogue.ChatID) (string, bool, error) {
	return "", false, s.err
}

func (s brokenStore) UpdateDialogue(context.Context, dialogue.ChatID, string) (string, bool, error) {
	return "", false, s.err
}

func (s brokenStore) RemoveDialogue(context.Context, dialogue.ChatID) (string, bool, error) {
	return "", false, s.err
}

func (s brokenStore) Close() error { return nil }

type opOutcome struct {
	op, outcome string
}

// collect returns operation counts by op and outcome, and the number of
// duration samples.
func collect(t *testing.T, reader *sdkmetric.ManualReader) (map[opOutcome]int64, uint64) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[opOutcome]int64)
	var samples uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "dialogue.storage.operations":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "operations is %T", m.Data)
				for _, dp := range sum.DataPoints {
					op, _ := dp.Attributes.Value("op")
					outcome, _ := dp.Attributes.Value("outcome")
					counts[opOutcome{op.AsString(), outcome.AsString()}] += dp.Value
				}
			case "dialogue.storage.duration":
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok, "duration is %T", m.Data)
				assert.Equal(t, "s", m.Unit)
				for _, dp := range hist.DataPoints {
					samples += dp.Count
				}
			}
		}
	}
	return counts, samples
}

func TestStorage_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) dialogue.Storage[string] {
		s, err := New[string](drivers.NewMemoryStore[string](), noop.NewMeterProvider())
		require.NoError(t, err)
		return s
	})
}

func TestDecorator_Contract(t *testing.T) {
	decorate, err := Decorator[string](noop.NewMeterProvider())
	require.NoError(t, err)

	storagetest.Run(t, func(t *testing.T) dialogue.Storage[string] {
		return dialogue.Wrap[string](drivers.NewMemoryStore[string](), decorate)
	})
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name  string
		found bool
		err   error
		want  string
	}{
		{name: "found", found: true, want: OutcomeOK},
		{name: "absent", want: OutcomeAbsent},
		{name: "closed", err: dialogue.ErrClosed, want: OutcomeClosed},
		{name: "canceled", err: context.Canceled, want: OutcomeCanceled},
		{name: "deadline", err: fmt.Errorf("wait: %w", context.DeadlineExceeded), want: OutcomeCanceled},
		{name: "backend", err: dialogue.NewBackendError("redis", dialogue.OpGet, 1, errors.New("eof")), want: OutcomeBackendError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.found, tt.err))
		})
	}
}

func TestStorage_Inner(t *testing.T) {
	base := drivers.NewMemoryStore[int]()
	s, err := New[int](base, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.Same(t, base, s.Inner())
}

func TestStorage_RecordsOperations(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	decorate, err := Decorator[string](provider)
	require.NoError(t, err)

	ctx := context.Background()
	s := decorate(drivers.NewMemoryStore[string]())
	_, _, err = s.UpdateDialogue(ctx, 1, "hello")
	require.NoError(t, err)
	_, _, err = s.GetDialogue(ctx, 1)
	require.NoError(t, err)
	_, _, err = s.GetDialogue(ctx, 2)
	require.NoError(t, err)
	_, _, err = s.RemoveDialogue(ctx, 2)
	require.NoError(t, err)

	broken := decorate(brokenStore{err: dialogue.NewBackendError("redis", dialogue.OpGet, 3, errors.New("eof"))})
	_, _, err = broken.GetDialogue(ctx, 3)
	require.Error(t, err)

	counts, samples := collect(t, reader)
	assert.Equal(t, map[opOutcome]int64{
		{dialogue.OpUpdate, OutcomeOK}:        1,
		{dialogue.OpGet, OutcomeOK}:           1,
		{dialogue.OpGet, OutcomeAbsent}:       1,
		{dialogue.OpRemove, OutcomeAbsent}:    1,
		{dialogue.OpGet, OutcomeBackendError}: 1,
	}, counts)
	assert.Equal(t, uint64(5), samples)
}

func TestStorage_ErrorPassthroughKeepsIdentity(t *testing.T) {
	want := dialogue.NewBackendError("sqlite", dialogue.OpUpdate, 4, errors.New("disk full"))
	s, err := New[string](brokenStore{err: want}, noop.NewMeterProvider())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = s.GetDialogue(ctx, 4)
	assert.Same(t, want, err)
	_, _, err = s.UpdateDialogue(ctx, 4, "x")
	assert.Same(t, want, err)
	_, _, err = s.RemoveDialogue(ctx, 4)
	assert.Same(t, want, err)
}
