// Package store persists binary document files under opaque references.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local is a file store rooted at a directory on local disk. References
// are slash-separated paths relative to the root.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns the store.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file store root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

// Put writes data under name and returns the reference to read it back.
func (s *Local) Put(_ context.Context, name string, data []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", name, err)
	}
	return name, nil
}

// Get reads the data stored under ref.
func (s *Local) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", ref, err)
	}
	return data, nil
}

// resolve maps a reference to an absolute path and rejects references that
// would escape the root.
func (s *Local) resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty file reference")
	}
	cleaned := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file reference %q escapes the store root", ref)
	}
	return filepath.Join(s.root, cleaned), nil
}
