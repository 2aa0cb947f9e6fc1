package drivers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/creastat/dialogue"
	_ "modernc.org/sqlite"
)

const createDialoguesSQL = `
CREATE TABLE IF NOT EXISTS dialogues (
    chat_id  INTEGER PRIMARY KEY,
    dialogue BLOB NOT NULL
);
`

// SQLiteStore implements dialogue.Storage backed by a SQLite database.
//
// Updates and removals run inside BEGIN IMMEDIATE, which takes the database
// write lock before the previous record is read, so read-then-write is
// atomic across connections and processes.
type SQLiteStore[D any] struct {
	db         *sql.DB
	serializer dialogue.Serializer[D]

	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore[D any](dbPath string, serializer dialogue.Serializer[D]) (*SQLiteStore[D], error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", dialogue.ErrInvalidConfig)
	}
	if serializer == nil {
		serializer = dialogue.JSON[D]{}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(createDialoguesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore[D]{db: db, serializer: serializer}, nil
}

func (s *SQLiteStore[D]) begin() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, dialogue.ErrClosed
	}
	return s.mu.RUnlock, nil
}

// GetDialogue implements dialogue.Storage.
func (s *SQLiteStore[D]) GetDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	done, err := s.begin()
	if err != nil {
		return zero, false, err
	}
	defer done()

	var blob []byte
	err = s.db.QueryRowContext(ctx, `SELECT dialogue FROM dialogues WHERE chat_id = ?`, int64(id)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, s.fail(ctx, dialogue.OpGet, id, err)
	}
	return s.decode(dialogue.OpGet, id, blob)
}

// UpdateDialogue implements dialogue.Storage.
func (s *SQLiteStore[D]) UpdateDialogue(ctx context.Context, id dialogue.ChatID, d D) (D, bool, error) {
	var zero D
	done, err := s.begin()
	if err != nil {
		return zero, false, err
	}
	defer done()

	blob, err := s.serializer.Serialize(d)
	if err != nil {
		return zero, false, s.fail(ctx, dialogue.OpUpdate, id, err)
	}

	return s.swap(ctx, dialogue.OpUpdate, id, func(conn *sql.Conn, _ bool) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO dialogues (chat_id, dialogue) VALUES (?, ?)
			ON CONFLICT(chat_id) DO UPDATE SET dialogue = excluded.dialogue`,
			int64(id), blob)
		return err
	})
}

// RemoveDialogue implements dialogue.Storage.
func (s *SQLiteStore[D]) RemoveDialogue(ctx context.Context, id dialogue.ChatID) (D, bool, error) {
	var zero D
	done, err := s.begin()
	if err != nil {
		return zero, false, err
	}
	defer done()

	return s.swap(ctx, dialogue.OpRemove, id, func(conn *sql.Conn, existed bool) error {
		if !existed {
			return nil
		}
		_, err := conn.ExecContext(ctx, `DELETE FROM dialogues WHERE chat_id = ?`, int64(id))
		return err
	})
}

// swap reads and decodes the current record of id, then applies write, all
// inside one BEGIN IMMEDIATE transaction. A record that cannot be decoded
// aborts the transaction, leaving the row untouched.
func (s *SQLiteStore[D]) swap(ctx context.Context, op string, id dialogue.ChatID, write func(conn *sql.Conn, existed bool) error) (D, bool, error) {
	var zero D

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return zero, false, s.fail(ctx, op, id, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return zero, false, s.fail(ctx, op, id, err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	var blob []byte
	prev, existed := zero, false
	err = conn.QueryRowContext(ctx, `SELECT dialogue FROM dialogues WHERE chat_id = ?`, int64(id)).Scan(&blob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return zero, false, s.fail(ctx, op, id, err)
	default:
		if prev, existed, err = s.decode(op, id, blob); err != nil {
			return zero, false, err
		}
	}

	if err := write(conn, existed); err != nil {
		return zero, false, s.fail(ctx, op, id, err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return zero, false, s.fail(ctx, op, id, err)
	}
	committed = true

	return prev, existed, nil
}

// Close implements dialogue.Storage.
func (s *SQLiteStore[D]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore[D]) decode(op string, id dialogue.ChatID, blob []byte) (D, bool, error) {
	d, err := s.serializer.Deserialize(blob)
	if err != nil {
		var zero D
		return zero, false, dialogue.NewBackendError("sqlite", op, id, err)
	}
	return d, true, nil
}

// fail reports ctx cancellation as is and everything else as a medium error.
func (s *SQLiteStore[D]) fail(ctx context.Context, op string, id dialogue.ChatID, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return dialogue.NewBackendError("sqlite", op, id, err)
}

var _ dialogue.Storage[int] = (*SQLiteStore[int])(nil)
