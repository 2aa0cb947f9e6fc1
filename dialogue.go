package dialogue

import "context"

// Dialogue binds a Storage to a single conversation, so handlers can work on
// "their" record without passing the ChatID around.
type Dialogue[D any] struct {
	storage Storage[D]
	chatID  ChatID
}

// NewDialogue creates a handle for chatID backed by storage.
func NewDialogue[D any](storage Storage[D], chatID ChatID) *Dialogue[D] {
	return &Dialogue[D]{storage: storage, chatID: chatID}
}

// ChatID returns the conversation this handle is bound to.
func (d *Dialogue[D]) ChatID() ChatID {
	return d.chatID
}

// Get returns the current record, if any.
func (d *Dialogue[D]) Get(ctx context.Context) (D, bool, error) {
	return d.storage.GetDialogue(ctx, d.chatID)
}

// GetOr returns the current record or def when the conversation has none.
func (d *Dialogue[D]) GetOr(ctx context.Context, def D) (D, error) {
	v, ok, err := d.storage.GetDialogue(ctx, d.chatID)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Update stores next as the conversation's record.
func (d *Dialogue[D]) Update(ctx context.Context, next D) error {
	_, _, err := d.storage.UpdateDialogue(ctx, d.chatID, next)
	return err
}

// Exit ends the conversation by removing its record.
func (d *Dialogue[D]) Exit(ctx context.Context) error {
	_, _, err := d.storage.RemoveDialogue(ctx, d.chatID)
	return err
}
