package drivers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/creastat/dialogue"
)

// FileMedium keeps one file per chat under root. Keys map to
// <root>/<chat id><ext>.
type FileMedium struct {
	root string
	ext  string
}

// NewFileMedium creates root if needed and returns a medium rooted there.
func NewFileMedium(root, ext string) (*FileMedium, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: file root is required", dialogue.ErrInvalidConfig)
	}
	if ext == "" {
		ext = ".json"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create dialogue directory: %w", err)
	}
	return &FileMedium{root: root, ext: ext}, nil
}

// NewFileStore creates a file-backed dialogue store.
func NewFileStore[D any](root string, kind dialogue.SerializerKind) (*BlobStore[D], error) {
	serializer, err := dialogue.SerializerFor[D](kind)
	if err != nil {
		return nil, err
	}
	medium, err := NewFileMedium(root, kind.Extension())
	if err != nil {
		return nil, err
	}
	return NewBlobStore(medium, serializer), nil
}

func (m *FileMedium) Name() string { return "file" }

func (m *FileMedium) path(id dialogue.ChatID) string {
	return filepath.Join(m.root, strconv.FormatInt(int64(id), 10)+m.ext)
}

func (m *FileMedium) Load(_ context.Context, id dialogue.ChatID) ([]byte, bool, error) {
	data, err := os.ReadFile(m.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target, so readers never see a partial record.
func (m *FileMedium) Save(_ context.Context, id dialogue.ChatID, data []byte) error {
	path := m.path(id)

	tmp, err := os.CreateTemp(m.root, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (m *FileMedium) Delete(_ context.Context, id dialogue.ChatID) error {
	if err := os.Remove(m.path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *FileMedium) Close() error { return nil }

var _ Medium = (*FileMedium)(nil)
