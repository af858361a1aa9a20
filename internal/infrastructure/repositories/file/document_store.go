package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"streamctl/internal/core/ports"
	"streamctl/pkg/tracing"

	"github.com/tidwall/jsonc"
)

// DocumentStore keeps each document in <dir>/<name>.json. Writes go to a
// temporary file in the same directory which is then renamed over the
// target, so readers see either the old or the new document.
type DocumentStore struct {
	dir   string
	names map[string]string
	mu    sync.Mutex
}

// Option configures a DocumentStore.
type Option func(*DocumentStore)

// WithFileName maps a document to a file name other than <name>.json.
func WithFileName(document, fileName string) Option {
	return func(s *DocumentStore) {
		s.names[document] = fileName
	}
}

func NewDocumentStore(dir string, opts ...Option) *DocumentStore {
	s := &DocumentStore{
		dir:   dir,
		names: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func (s *DocumentStore) path(name string) string {
	if fileName, ok := s.names[name]; ok {
		if filepath.IsAbs(fileName) {
			return fileName
		}
		return filepath.Join(s.dir, fileName)
	}
	return filepath.Join(s.dir, name+".json")
}

// Load accepts JSON with comments and trailing commas.
func (s *DocumentStore) Load(ctx context.Context, name string, v interface{}) (bool, error) {
	_, span := tracing.TraceDocumentOperation(ctx, "load", name)
	defer span.End()

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return true, nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, v interface{}) error {
	_, span := tracing.TraceDocumentOperation(ctx, "save", name)
	defer span.End()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(name)
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// Ping checks that the directory exists and is writable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("document directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("document directory %s is not a directory", s.dir)
	}
	f, err := os.CreateTemp(s.dir, ".ping.*")
	if err != nil {
		return fmt.Errorf("document directory not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
