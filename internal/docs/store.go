package docs

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps rendered documents on local disk. The returned path is
// persisted on the owning order or invoice.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) Store(name string, data []byte) (string, error) {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}
	path := filepath.Join(f.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to store document %s: %w", name, err)
	}
	return path, nil
}
