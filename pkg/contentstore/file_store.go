package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps documents as files under a root directory, named by the
// hex digest with the algorithm as a subdirectory ("<root>/sha256/<hex>").
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "sha256"), 0o755); err != nil {
		return nil, fmt.Errorf("create content store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) path(id string) (string, error) {
	algo, hex, ok := strings.Cut(id, ":")
	if !ok || algo != "sha256" || hex == "" || strings.ContainsAny(hex, "/\\.") {
		return "", fmt.Errorf("invalid content id %q", id)
	}
	return filepath.Join(s.root, algo, hex), nil
}

func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	id := ContentID(data)
	path, err := s.path(id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	// Write-then-rename keeps a crashed write from leaving a torn document
	// at the content address.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("stage content: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage content: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("commit content: %w", err)
	}
	return id, nil
}

func (s *FileStore) Get(_ context.Context, id string) ([]byte, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, id string) (bool, error) {
	path, err := s.path(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
