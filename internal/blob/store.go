// Package blob is the local stand-in for the external raw object store: the
// upload path writes bytes here and the parse worker reads them back.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = "./uploads"
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Clean(filepath.Join(s.dir, filepath.Base(name)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return path, nil
}

func (s *DiskStore) Read(ctx context.Context, path string) ([]byte, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean) // #nosec G304 -- path comes from our own documents table, not user input
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}
