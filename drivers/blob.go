package drivers

import (
	"context"
	"sync"

	"github.com/creastat/dialogue"
	"github.com/creastat/dialogue/internal/keylock"
)

// Medium is a persistence target that stores one opaque blob per chat but
// offers no atomic swap of its own: a file tree, an object bucket, a REST
// table. BlobStore adds serialization and per-key exclusivity on top.
//
// Implementations return raw errors; BlobStore reports them as
// dialogue.BackendError.
type Medium interface {
	// Name identifies the medium in errors and logs.
	Name() string
	// Load returns the blob for id. ok is false when there is none.
	Load(ctx context.Context, id dialogue.ChatID) (data []byte, ok bool, err error)
	// Save creates or overwrites the blob for id. A reader must observe
	// either the old or the new blob, never a partial one.
	Save(ctx context.Context, id dialogue.ChatID, data []byte) error
	// Delete removes the blob for id. Missing blobs are not an error.
	Delete(ctx context.Context, id dialogue.ChatID) error
	// Close releases the medium's resources.
	Close() error
}

// BlobStore implements dialogue.Storage over a Medium. Read-modify-write
// sequences for one ChatID run inside an exclusive section, so within a
// process updates and removals of a key never interleave.
type BlobStore[D any] struct {
	medium     Medium
	serializer dialogue.Serializer[D]
	locks      *keylock.Locker

	mu     sync.RWMutex
	closed bool
}

// NewBlobStore creates a dialogue store on top of medium.
func NewBlobStore[D any](medium Medium, serializer dialogue.Serializer[D]) *BlobStore[D] {
	if serializer == nil {
		serializer = dialogue.JSON[D]{}
	}
	return &BlobStore[D]{
		medium:     medium,
		serializer: serializer,
		locks:      keylock.New(),
	}
}

// Medium returns the underlying medium.
func (s *BlobStore[D]) Medium() Medium {
	return s.medium
}

func (s *BlobStore[D]) begin() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, dialogue.ErrClosed
	}
	return s.mu.RUnlock, nil
}

// GetDialogue implements dialogue.Storage.
func (s *BlobStore[D]) GetDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	done, err := s.begin()
	if err != nil {
		return zero, false, err
	}
	defer done()

	return s.load(ctx, dialogue.OpGet, id)
}

// UpdateDialogue implements dialogue.Storage.
func (s *BlobStore[D]) UpdateDialogue(ctx context.Context, id dialogue.ChatID, d D) (D, bool, error) {
	var zero D
	done, err := s.begin()
	if err != nil {
		return zero, false, err
	}
	defer done()

	data, err := s.serializer.Serialize(d)
	if err != nil {
		return zero, false, s.fail(dialogue.OpUpdate, id, err)
	}

	unlock, err := s.locks.Lock(ctx, int64(id))
	if err != nil {
		return zero, false, err
	}
	defer unlock()

	prev, existed, err := s.load(ctx, dialogue.OpUpdate, id)
	if err != nil {
		return zero, false, err
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	if err := s.medium.Save(ctx, id, data); err != nil {
		return zero, false, s.fail(dialogue.OpUpdate, id, err)
	}
	return prev, existed, nil
}

// RemoveDialogue implements dialogue.Storage.
func (s *BlobStore[D]) RemoveDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	done, err := s.begin()
	if err != nil {
		return zero, false, err
	}
	defer done()

	unlock, err := s.locks.Lock(ctx, int64(id))
	if err != nil {
		return zero, false, err
	}
	defer unlock()

	prev, existed, err := s.load(ctx, dialogue.OpRemove, id)
	if err != nil || !existed {
		return zero, false, err
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	if err := s.medium.Delete(ctx, id); err != nil {
		return zero, false, s.fail(dialogue.OpRemove, id, err)
	}
	return prev, true, nil
}

// Close implements dialogue.Storage. It waits for in-flight operations.
func (s *BlobStore[D]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.medium.Close()
}

func (s *BlobStore[D]) load(ctx context.Context, op string, id dialogue.ChatID) (D, bool, error) {
	var zero D
	data, ok, err := s.medium.Load(ctx, id)
	if err != nil {
		return zero, false, s.fail(op, id, err)
	}
	if !ok {
		return zero, false, nil
	}

	d, err := s.serializer.Deserialize(data)
	if err != nil {
		return zero, false, s.fail(op, id, err)
	}
	return d, true, nil
}

func (s *BlobStore[D]) fail(op string, id dialogue.ChatID, err error) error {
	return dialogue.NewBackendError(s.medium.Name(), op, id, err)
}

var _ dialogue.Storage[int] = (*BlobStore[int])(nil)
