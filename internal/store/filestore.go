package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vkcalls/vkcall/internal/misc"
)

// DefaultFileName is the file holding the key-value map inside the auth directory.
const DefaultFileName = "vkcall-store.json"

// FileBackend stores all keys in one JSON object on disk. Every write
// replaces the file through a temp file and rename.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend returns a backend persisting to path. The parent directory
// is created on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: filepath.Clean(path)}
}

// Path returns the backing file path.
func (s *FileBackend) Path() string { return s.path }

func (s *FileBackend) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := readJSONMap(s.path)
	if err != nil {
		return "", false, fmt.Errorf("file store: %w", err)
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileBackend) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := readJSONMap(s.path)
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if current, ok := values[key]; ok && current == value {
		return nil
	}
	values[key] = value
	misc.LogSavingCredentials("file", s.path)
	if err = writeJSONMap(s.path, values); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}

func (s *FileBackend) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := readJSONMap(s.path)
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	if err = writeJSONMap(s.path, values); err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	return nil
}

func (s *FileBackend) Close() error { return nil }

// readJSONMap loads a string map from path. A missing or empty file yields an empty map.
func readJSONMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err = json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return values, nil
}

func writeJSONMap(path string, values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write temp failed: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}
