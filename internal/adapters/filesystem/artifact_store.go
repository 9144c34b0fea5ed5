// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/reelforge/internal/ports/secondary"
)

// ArtifactStore implements secondary.ArtifactStore over a directory tree.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a store rooted at root.
// If root is empty, defaults to ~/.reelforge/artifacts.
func NewArtifactStore(root string) (*ArtifactStore, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		root = filepath.Join(home, ".reelforge", "artifacts")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root: %w", err)
	}
	return &ArtifactStore{root: abs}, nil
}

// Root returns the absolute artifact root.
func (s *ArtifactStore) Root() string {
	return s.root
}

// Exists reports whether an artifact exists at a path relative to the root.
// Paths leaving the root are rejected.
func (s *ArtifactStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat artifact %s: %w", path, err)
}

func (s *ArtifactStore) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return "", fmt.Errorf("artifact path %q must be relative", path)
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q escapes the artifact root", path)
	}
	return filepath.Join(s.root, clean), nil
}

// Ensure ArtifactStore implements the interface
var _ secondary.ArtifactStore = (*ArtifactStore)(nil)
