package drivers

import (
	"context"
	"sync"

	"github.com/creastat/dialogue"
)

const defaultShards = 32

// memoryShard is one independently locked partition of the keyspace.
type memoryShard[D any] struct {
	mu        sync.RWMutex
	dialogues map[dialogue.ChatID]D
}

// MemoryStore implements dialogue.Storage with an in-memory map sharded by
// ChatID. A key always lands in the same shard, so updates and removals of
// one conversation serialize on that shard's lock while other shards stay
// available.
type MemoryStore[D any] struct {
	shards []*memoryShard[D]
	clone  func(D) D

	mu     sync.RWMutex
	closed bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption[D any] func(*MemoryStore[D])

// WithShards sets the number of partitions. Values below 1 are ignored.
func WithShards[D any](n int) MemoryOption[D] {
	return func(s *MemoryStore[D]) {
		if n > 0 {
			s.shards = newShards[D](n)
		}
	}
}

// WithClone copies records on their way in and out of the store. Use it when
// D holds maps, slices or pointers that callers may mutate.
func WithClone[D any](clone func(D) D) MemoryOption[D] {
	return func(s *MemoryStore[D]) {
		s.clone = clone
	}
}

// NewMemoryStore creates a new in-memory dialogue store.
func NewMemoryStore[D any](opts ...MemoryOption[D]) *MemoryStore[D] {
	s := &MemoryStore[D]{shards: newShards[D](defaultShards)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newShards[D any](n int) []*memoryShard[D] {
	shards := make([]*memoryShard[D], n)
	for i := range shards {
		shards[i] = &memoryShard[D]{dialogues: make(map[dialogue.ChatID]D)}
	}
	return shards
}

func (s *MemoryStore[D]) shard(id dialogue.ChatID) *memoryShard[D] {
	return s.shards[uint64(id)%uint64(len(s.shards))]
}

func (s *MemoryStore[D]) copy(d D) D {
	if s.clone == nil {
		return d
	}
	return s.clone(d)
}

// begin checks the store is open and ctx is still live. The returned func
// must be called when the operation is done.
func (s *MemoryStore[D]) begin(ctx context.Context) (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, dialogue.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	return s.mu.RUnlock, nil
}

// GetDialogue implements dialogue.Storage.
func (s *MemoryStore[D]) GetDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	done, err := s.begin(ctx)
	if err != nil {
		return zero, false, err
	}
	defer done()

	sh := s.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	d, ok := sh.dialogues[id]
	if !ok {
		return zero, false, nil
	}
	return s.copy(d), true, nil
}

// UpdateDialogue implements dialogue.Storage.
func (s *MemoryStore[D]) UpdateDialogue(ctx context.Context, id dialogue.ChatID, d D) (D, bool, error) {
	var zero D
	done, err := s.begin(ctx)
	if err != nil {
		return zero, false, err
	}
	defer done()

	stored := s.copy(d)

	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev, existed := sh.dialogues[id]
	sh.dialogues[id] = stored
	return prev, existed, nil
}

// RemoveDialogue implements dialogue.Storage.
func (s *MemoryStore[D]) RemoveDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	done, err := s.begin(ctx)
	if err != nil {
		return zero, false, err
	}
	defer done()

	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prev, existed := sh.dialogues[id]
	if !existed {
		return zero, false, nil
	}
	delete(sh.dialogues, id)
	return prev, true, nil
}

// Len returns the number of stored dialogues.
func (s *MemoryStore[D]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.dialogues)
		sh.mu.RUnlock()
	}
	return n
}

// Close implements dialogue.Storage.
func (s *MemoryStore[D]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.dialogues = nil
		sh.mu.Unlock()
	}
	return nil
}

var _ dialogue.Storage[int] = (*MemoryStore[int])(nil)
