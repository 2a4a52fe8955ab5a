package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Storage.Load when nothing has been stored.
var ErrNotFound = errors.New("cache: no stored entry")

// Storage holds the encoded cache entry.
type Storage interface {
	Load() ([]byte, error)
	Store(data []byte) error
}

// FileStorage stores the cache in a single file. Writes go to a temporary
// file in the same directory which is synced and then renamed over the
// target, so readers see either the old or the new file, never a partial
// one.
type FileStorage struct {
	Path string
}

// NewFileStorage returns storage backed by path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

// Load implements Storage.
func (s *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	return data, nil
}

// Store implements Storage.
func (s *FileStorage) Store(data []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	file, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary cache file: %w", err)
	}
	temporaryPath := file.Name()

	// Write, sync, close, then rename. On any failure the temporary file
	// is removed and the previous cache file is untouched.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary cache file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary cache file: %w", err)
	}
	if err := os.Rename(temporaryPath, s.Path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// MemoryStorage is an in-memory Storage for tests.
type MemoryStorage struct {
	mu     sync.Mutex
	data   []byte
	Writes int
	// FailWrites makes Store return an error.
	FailWrites bool
}

// Load implements Storage.
func (s *MemoryStorage) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// Store implements Storage.
func (s *MemoryStorage) Store(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errors.New("memory storage: write refused")
	}
	s.data = append([]byte(nil), data...)
	s.Writes++
	return nil
}

// Bytes returns a copy of the stored data.
func (s *MemoryStorage) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// Set replaces the stored data without counting a write.
func (s *MemoryStorage) Set(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
}
