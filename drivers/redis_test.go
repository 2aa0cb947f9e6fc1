package drivers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/internal/storagetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to DIALOGUE_TEST_REDIS_ADDR and isolates the test
// under its own key prefix.
func newTestRedis(t *testing.T, ttl time.Duration) *RedisStore[string] {
	t.Helper()
	addr := os.Getenv("DIALOGUE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DIALOGUE_TEST_REDIS_ADDR not set; skipping redis test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	prefix := fmt.Sprintf("dialogue-test:%s:%d:", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() {
		cleanup := redis.NewClient(&redis.Options{Addr: addr})
		defer cleanup.Close()
		ctx := context.Background()
		iter := cleanup.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			cleanup.Del(ctx, iter.Val())
		}
	})

	return NewRedisStore[string](client, nil, prefix, ttl)
}

func TestRedisStore_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) dialogue.Storage[string] {
		return newTestRedis(t, 0)
	})
}

func TestRedisStore_TTL(t *testing.T) {
	s := newTestRedis(t, time.Minute)
	defer s.Close()
	ctx := context.Background()

	_, _, err := s.UpdateDialogue(ctx, 3, "expiring")
	require.NoError(t, err)

	ttl, err := s.client.TTL(ctx, s.key(3)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_Key(t *testing.T) {
	s := NewRedisStore[string](nil, nil, "", 0)
	assert.Equal(t, "dialogue:42", s.key(42))
	assert.Equal(t, "dialogue:-42", s.key(-42))

	s = NewRedisStore[string](nil, nil, "bot:", 0)
	assert.Equal(t, "bot:7", s.key(7))
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	s := newTestRedis(t, 0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.client.Set(ctx, s.key(9), "{not json", 0).Err())

	_, _, err := s.GetDialogue(ctx, 9)
	assert.ErrorIs(t, err, dialogue.ErrSerialization)
	assert.True(t, dialogue.IsBackend(err))

	_, _, err = s.UpdateDialogue(ctx, 9, "start")
	assert.ErrorIs(t, err, dialogue.ErrSerialization)
	raw, err := s.client.Get(ctx, s.key(9)).Result()
	require.NoError(t, err)
	assert.Equal(t, "{not json", raw)

	_, _, err = s.RemoveDialogue(ctx, 9)
	assert.ErrorIs(t, err, dialogue.ErrSerialization)
	raw, err = s.client.Get(ctx, s.key(9)).Result()
	require.NoError(t, err)
	assert.Equal(t, "{not json", raw)
}
