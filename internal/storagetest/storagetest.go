// Package storagetest runs the dialogue.Storage contract against any backend.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/creastat/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) dialogue.Storage[string]

// Run exercises the contract shared by every backend and decorator.
func Run(t *testing.T, newStore Factory) {
	t.Run("absent dialogue", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		d, ok, err := s.GetDialogue(ctx, 404)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, d)

		prev, existed, err := s.RemoveDialogue(ctx, 404)
		require.NoError(t, err)
		assert.False(t, existed)
		assert.Empty(t, prev)
	})

	t.Run("previous values", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		prev, existed, err := s.UpdateDialogue(ctx, 1, "v1")
		require.NoError(t, err)
		assert.False(t, existed)
		assert.Empty(t, prev)

		prev, existed, err = s.UpdateDialogue(ctx, 1, "v2")
		require.NoError(t, err)
		assert.True(t, existed)
		assert.Equal(t, "v1", prev)

		d, ok, err := s.GetDialogue(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v2", d)

		prev, existed, err = s.RemoveDialogue(ctx, 1)
		require.NoError(t, err)
		assert.True(t, existed)
		assert.Equal(t, "v2", prev)

		_, existed, err = s.RemoveDialogue(ctx, 1)
		require.NoError(t, err)
		assert.False(t, existed)

		_, ok, err = s.GetDialogue(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("negative chat id", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		_, _, err := s.UpdateDialogue(ctx, -100123, "group")
		require.NoError(t, err)

		d, ok, err := s.GetDialogue(ctx, -100123)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "group", d)

		_, ok, err = s.GetDialogue(ctx, 100123)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent updates of one key form a chain", func(t *testing.T) {
		s := open(t, newStore)
		AssertUpdateChain(t, s, 7, 24)
	})

	t.Run("different keys do not interfere", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(id dialogue.ChatID) {
				defer wg.Done()
				for j := 0; j < 4; j++ {
					_, _, err := s.UpdateDialogue(ctx, id, fmt.Sprintf("%d-%d", id, j))
					assert.NoError(t, err)
				}
			}(dialogue.ChatID(i))
		}
		wg.Wait()

		for i := 0; i < 16; i++ {
			d, ok, err := s.GetDialogue(ctx, dialogue.ChatID(i))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, fmt.Sprintf("%d-3", i), d)
		}
	})

	t.Run("cancelled update leaves state untouched", func(t *testing.T) {
		s := open(t, newStore)

		_, _, err := s.UpdateDialogue(context.Background(), 5, "kept")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err = s.UpdateDialogue(ctx, 5, "lost")
		assert.ErrorIs(t, err, context.Canceled)

		_, _, err = s.RemoveDialogue(ctx, 5)
		assert.ErrorIs(t, err, context.Canceled)

		d, ok, err := s.GetDialogue(context.Background(), 5)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "kept", d)
	})

	t.Run("closed store", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())
		ctx := context.Background()

		_, _, err := s.GetDialogue(ctx, 1)
		assert.ErrorIs(t, err, dialogue.ErrClosed)
		assert.False(t, dialogue.IsBackend(err))

		_, _, err = s.UpdateDialogue(ctx, 1, "x")
		assert.ErrorIs(t, err, dialogue.ErrClosed)

		_, _, err = s.RemoveDialogue(ctx, 1)
		assert.ErrorIs(t, err, dialogue.ErrClosed)

		assert.NoError(t, s.Close(), "second close is a no-op")
	})
}

// AssertUpdateChain issues n concurrent updates of id and checks that the
// previous values they observed form one serialization: exactly one update
// saw no record, every other value was replaced exactly once, and the
// surviving value was replaced by nobody.
func AssertUpdateChain(t *testing.T, s dialogue.Storage[string], id dialogue.ChatID, n int) {
	t.Helper()
	ctx := context.Background()

	type result struct {
		prev    string
		existed bool
	}
	results := make([]result, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prev, existed, err := s.UpdateDialogue(ctx, id, fmt.Sprintf("v%d", i))
			assert.NoError(t, err)
			results[i] = result{prev: prev, existed: existed}
		}(i)
	}
	wg.Wait()

	final, ok, err := s.GetDialogue(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	firsts := 0
	replaced := make(map[string]int, n)
	for _, r := range results {
		if !r.existed {
			firsts++
			continue
		}
		replaced[r.prev]++
	}

	assert.Equal(t, 1, firsts, "exactly one update must see an empty slot")
	assert.Zero(t, replaced[final], "final value %q was reported as replaced", final)
	for i := 0; i < n; i++ {
		v := fmt.Sprintf("v%d", i)
		if v == final {
			continue
		}
		assert.Equal(t, 1, replaced[v], "value %q must be replaced exactly once", v)
	}
}

func open(t *testing.T, newStore Factory) dialogue.Storage[string] {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
