package drivers

import (
	"context"
	"testing"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/internal/storagetest"
	"github.com/creastat/dialogue/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) dialogue.Storage[string] {
		return NewMemoryStore[string]()
	})
}

func TestMemoryStore_SingleShard(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) dialogue.Storage[string] {
		return NewMemoryStore(WithShards[string](1))
	})
}

func TestNewMemoryStore(t *testing.T) {
	s := NewMemoryStore[string]()
	assert.Len(t, s.shards, defaultShards)
	assert.Equal(t, 0, s.Len())

	s = NewMemoryStore(WithShards[string](4))
	assert.Len(t, s.shards, 4)

	s = NewMemoryStore(WithShards[string](0))
	assert.Len(t, s.shards, defaultShards, "non-positive shard count is ignored")
}

func TestMemoryStore_ShardPlacement(t *testing.T) {
	s := NewMemoryStore(WithShards[string](8))

	assert.Same(t, s.shard(3), s.shard(11))
	assert.NotSame(t, s.shard(3), s.shard(4))
	assert.Same(t, s.shard(-1), s.shard(-1))
}

func TestMemoryStore_Clone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithClone(session.State.Clone))

	state := session.State{Metadata: map[string]string{"lang": "en"}}
	_, _, err := s.UpdateDialogue(ctx, 1, state)
	require.NoError(t, err)

	// Mutating the caller's copy must not leak into the store.
	state.Metadata["lang"] = "de"

	got, ok, err := s.GetDialogue(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", got.Metadata["lang"])

	// Nor may mutating a returned copy.
	got.Metadata["lang"] = "fr"
	again, _, err := s.GetDialogue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "en", again.Metadata["lang"])
}

func TestMemoryStore_Len(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[int]()

	for i := 0; i < 10; i++ {
		_, _, err := s.UpdateDialogue(ctx, dialogue.ChatID(i), i)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, s.Len())

	_, _, err := s.RemoveDialogue(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Len())
}
