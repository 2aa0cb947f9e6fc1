// Package dialogue defines the storage contract for per-conversation dialogue
// state and the helpers shared by its backends and decorators.
package dialogue

import "context"

// ChatID identifies one conversation.
type ChatID int64

// Operation names reported in BackendError and by decorators.
const (
	OpGet    = "get"
	OpUpdate = "update"
	OpRemove = "remove"
)

// Storage keeps one dialogue record of type D per conversation.
//
// Updates and removals of the same ChatID are applied one at a time, in a
// single consistent order. Operations on different ChatIDs do not wait on
// each other. A call whose context is cancelled either takes full effect or
// none at all.
type Storage[D any] interface {
	// GetDialogue returns the current record for id.
	// ok is false if there is none; that is not an error.
	GetDialogue(ctx context.Context, id ChatID) (d D, ok bool, err error)

	// UpdateDialogue replaces the record for id and returns the previous one.
	// existed is false when id had no record.
	UpdateDialogue(ctx context.Context, id ChatID, d D) (prev D, existed bool, err error)

	// RemoveDialogue deletes the record for id and returns it.
	// existed is false when there was nothing to remove.
	RemoveDialogue(ctx context.Context, id ChatID) (prev D, existed bool, err error)

	// Close releases the store. Later calls fail with ErrClosed.
	Close() error
}

// Decorator wraps a Storage with cross-cutting behavior while keeping its
// contract.
type Decorator[D any] func(Storage[D]) Storage[D]

// Wrap applies decorators to s. The first decorator ends up outermost, so
// Wrap(s, a, b) behaves as a(b(s)).
func Wrap[D any](s Storage[D], decorators ...Decorator[D]) Storage[D] {
	for i := len(decorators) - 1; i >= 0; i-- {
		if decorators[i] != nil {
			s = decorators[i](s)
		}
	}
	return s
}
