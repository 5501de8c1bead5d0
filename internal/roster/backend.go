package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultKey is the namespaced key the roster is persisted under.
const DefaultKey = "interview-store"

// Backend persists the encoded roster document. Load returns nil data when
// nothing has been stored yet.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Notifier is implemented by backends that can broadcast roster changes to
// other processes.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// FileBackend stores the roster as a JSON file.
type FileBackend struct {
	Path string
}

// NewFileBackend returns a backend writing to path.
func NewFileBackend(path string) *FileBackend {
	if path == "" {
		path = DefaultKey + ".json"
	}
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read roster file %q: %w", b.Path, err)
	}
	return data, nil
}

// Save writes through a temporary file so a crash never leaves a torn document.
func (b *FileBackend) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create roster directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary roster file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write roster file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close roster file: %w", err)
	}
	if err := os.Rename(tmpName, b.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace roster file: %w", err)
	}
	return nil
}

// MemoryBackend keeps the encoded document in memory. Useful for tests and
// for running without durability.
type MemoryBackend struct {
	data []byte
}

func (b *MemoryBackend) Load(_ context.Context) ([]byte, error) {
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, data []byte) error {
	b.data = append([]byte(nil), data...)
	return nil
}
