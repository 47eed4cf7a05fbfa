// Package local stores content bytes as files under a root directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobStore = (*Store)(nil)

// BackendName is reported by Backend
const BackendName = "local"

// Store implements driven.BlobStore on the local filesystem. Logical paths
// map to files below root; writes go to a temp file that is renamed into
// place, so readers never see a partial object.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: storage root is required", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage root: %w", domain.ErrStorageUnavailable, err)
	}
	return &Store{root: abs}, nil
}

// Put writes data at path, replacing any existing file
func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return classify(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return classify(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return classify(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return classify(err)
	}
	if err := tmp.Close(); err != nil {
		return classify(err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return classify(err)
	}
	return nil
}

// Get reads the file at path
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// Delete removes the file at path
func (s *Store) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return classify(err)
	}
	return nil
}

// Exists reports whether a file is stored at path
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return info.Mode().IsRegular(), nil
}

// Backend returns "local"
func (s *Store) Backend() string {
	return BackendName
}

// Ping checks the root directory is still there
func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return classify(err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrStorageUnavailable, s.root)
	}
	return nil
}

// Root returns the absolute storage root
func (s *Store) Root() string {
	return s.root
}

func (s *Store) resolve(path string) (string, error) {
	norm, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(norm)), nil
}

func classify(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
