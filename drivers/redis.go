package drivers

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/creastat/dialogue"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for dialogues
	dialogueKeyPrefix = "dialogue:"
)

// RedisStore implements dialogue.Storage using Redis.
//
// Update and removal read the previous record under WATCH and write it in
// MULTI/EXEC, so every mutation of a key is atomic on the server, across
// processes.
type RedisStore[D any] struct {
	client     *redis.Client
	serializer dialogue.Serializer[D]
	prefix     string
	ttl        time.Duration
	closed     atomic.Bool
}

// NewRedisStore creates a new Redis-based dialogue store. A ttl of zero or
// less keeps records until they are removed.
func NewRedisStore[D any](client *redis.Client, serializer dialogue.Serializer[D], prefix string, ttl time.Duration) *RedisStore[D] {
	if prefix == "" {
		prefix = dialogueKeyPrefix
	}
	if serializer == nil {
		serializer = dialogue.JSON[D]{}
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore[D]{
		client:     client,
		serializer: serializer,
		prefix:     prefix,
		ttl:        ttl,
	}
}

// GetDialogue implements dialogue.Storage.
func (s *RedisStore[D]) GetDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	if s.closed.Load() {
		return zero, false, dialogue.ErrClosed
	}

	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, s.fail(ctx, dialogue.OpGet, id, err)
	}
	return s.decode(ctx, dialogue.OpGet, id, val)
}

// UpdateDialogue implements dialogue.Storage.
func (s *RedisStore[D]) UpdateDialogue(ctx context.Context, id dialogue.ChatID, d D) (D, bool, error) {
	var zero D
	if s.closed.Load() {
		return zero, false, dialogue.ErrClosed
	}

	val, err := s.serializer.Serialize(d)
	if err != nil {
		return zero, false, s.fail(ctx, dialogue.OpUpdate, id, err)
	}

	return s.swap(ctx, dialogue.OpUpdate, id, func(pipe redis.Pipeliner, key string, _ bool) {
		pipe.Set(ctx, key, val, s.ttl)
	})
}

// RemoveDialogue implements dialogue.Storage.
func (s *RedisStore[D]) RemoveDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	if s.closed.Load() {
		return zero, false, dialogue.ErrClosed
	}

	return s.swap(ctx, dialogue.OpRemove, id, func(pipe redis.Pipeliner, key string, existed bool) {
		if existed {
			pipe.Del(ctx, key)
		}
	})
}

// swap reads and decodes the current record under WATCH, then queues write in
// a MULTI/EXEC block. A concurrent change of the key aborts EXEC and the whole
// read-decode-write cycle is retried. A record that cannot be decoded fails
// the call before anything is written.
func (s *RedisStore[D]) swap(ctx context.Context, op string, id dialogue.ChatID, write func(pipe redis.Pipeliner, key string, existed bool)) (D, bool, error) {
	var zero D
	key := s.key(id)

	var (
		prev    D
		existed bool
	)
	txf := func(tx *redis.Tx) error {
		prev, existed = zero, false

		val, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if prev, err = s.serializer.Deserialize(val); err != nil {
				return err
			}
			existed = true
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe, key, existed)
			return nil
		})
		return err
	}

	for {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, false, ctxErr
			}
			continue
		}
		if err != nil {
			return zero, false, s.fail(ctx, op, id, err)
		}
		return prev, existed, nil
	}
}

// Close implements dialogue.Storage.
func (s *RedisStore[D]) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

// key constructs the Redis key for a chat ID.
func (s *RedisStore[D]) key(id dialogue.ChatID) string {
	return s.prefix + strconv.FormatInt(int64(id), 10)
}

func (s *RedisStore[D]) decode(ctx context.Context, op string, id dialogue.ChatID, val []byte) (D, bool, error) {
	d, err := s.serializer.Deserialize(val)
	if err != nil {
		var zero D
		return zero, false, s.fail(ctx, op, id, err)
	}
	return d, true, nil
}

// fail reports ctx cancellation and a closed client as is and everything
// else as a medium error.
func (s *RedisStore[D]) fail(ctx context.Context, op string, id dialogue.ChatID, err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return dialogue.ErrClosed
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return dialogue.NewBackendError("redis", op, id, err)
}

var _ dialogue.Storage[int] = (*RedisStore[int])(nil)
