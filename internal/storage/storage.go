package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

const (
	// KindFile persists the collection to a single JSON file.
	KindFile = "file"
	// KindMemory keeps the collection in process memory only.
	KindMemory = "memory"
)

var (
	// ErrUnknownBackend indicates the requested storage kind is not supported.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// emptyCollection is written to a freshly bootstrapped backing store.
var emptyCollection = []byte("[]")

// Backend loads and saves the serialized application collection as a whole.
type Backend interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// New returns the backend registered under kind.
func New(kind, path string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindFile, "":
		return NewFileBackend(path), nil
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// FileBackend stores the collection in one file that is overwritten on every save.
// Writes are not atomic: a crash mid-write can truncate the file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend rooted at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path reports the backing file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads the whole file, creating it with an empty collection if it is missing.
func (b *FileBackend) Load() ([]byte, error) {
	if _, err := os.Stat(b.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", b.path, err)
		}
		if err := os.WriteFile(b.path, emptyCollection, 0o644); err != nil {
			return nil, fmt.Errorf("bootstrap %s: %w", b.path, err)
		}
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	return data, nil
}

// Save replaces the file contents with data.
func (b *FileBackend) Save(data []byte) error {
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	return nil
}

// MemoryBackend keeps the serialized collection in-memory and guards access with a RWMutex.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryBackend initialises the backend with an empty collection.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: clone(emptyCollection)}
}

// Load returns a defensive copy of the stored bytes.
func (b *MemoryBackend) Load() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return clone(b.data), nil
}

// Save stores a copy of data, replacing whatever was there.
func (b *MemoryBackend) Save(data []byte) error {
	b.mu.Lock()
	b.data = clone(data)
	b.mu.Unlock()

	return nil
}

func clone(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
