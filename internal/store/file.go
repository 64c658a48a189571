package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps documents under `<root>/<runID>/<name>`. Key segments are
// validated before any path is built, so nothing can escape the root.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at root. The directory is created
// lazily on the first Put.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Put(ctx context.Context, runID, name string, data []byte) error {
	if err := validKey(runID, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if err := validKey(runID, name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, runID, name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s/%s: %w", runID, name, err)
	}
	return data, nil
}

func (s *FileStore) List(ctx context.Context, runID string) ([]string, error) {
	if err := validComponent("run id", runID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", runID, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *FileStore) Kind() string { return "file" }
