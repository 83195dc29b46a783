package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps one JSON file per form ID under a base directory.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(formID string) string {
	// Form IDs are caller-supplied; keep them from escaping the directory.
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(formID)
	return filepath.Join(f.dir, name+".json")
}

func (f *FileStore) Save(ctx context.Context, formID string, values map[string]any) error {
	data, err := Encode(values)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := f.path(formID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := os.Rename(tmp, f.path(formID)); err != nil {
		return fmt.Errorf("failed to replace form file: %w", err)
	}
	return nil
}

func (f *FileStore) Load(ctx context.Context, formID string) (map[string]any, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path(formID))
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read form file: %w", err)
	}
	return Decode(data)
}

func (f *FileStore) Clear(ctx context.Context, formID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(formID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove form file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
