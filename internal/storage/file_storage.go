package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
)

const partSuffix = ".part"

// FileStorage manages artifacts on the local filesystem. Downloads are written
// to "<destination>.part" and renamed into place by Commit, so a destination
// path only ever holds a complete response body.
type FileStorage struct {
	root string
}

// NewFileStorage creates a FileStorage. Relative destinations are resolved
// against root.
func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

// Resolve returns the absolute-or-rooted path for dest.
func (s *FileStorage) Resolve(dest string) string {
	if filepath.IsAbs(dest) || s.root == "" {
		return filepath.Clean(dest)
	}
	return filepath.Join(s.root, dest)
}

// PartPath returns the in-progress path for dest.
func (s *FileStorage) PartPath(dest string) string {
	return s.Resolve(dest) + partSuffix
}

// CreatePart truncates or creates the partial file for dest, creating parent
// directories as needed.
func (s *FileStorage) CreatePart(dest string) (*os.File, error) {
	path := s.PartPath(dest)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create directory: %v", errpkg.ErrFilesystem, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create file: %v", errpkg.ErrFilesystem, err)
	}
	return f, nil
}

// AppendPart opens the partial file for dest for appending.
func (s *FileStorage) AppendPart(dest string) (*os.File, error) {
	f, err := os.OpenFile(s.PartPath(dest), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open file for append: %v", errpkg.ErrFilesystem, err)
	}
	return f, nil
}

// PartSize returns the size of the partial file for dest, or zero.
func (s *FileStorage) PartSize(dest string) int64 {
	info, err := os.Stat(s.PartPath(dest))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Commit moves the partial file for dest into place.
func (s *FileStorage) Commit(dest string) error {
	if err := os.Rename(s.PartPath(dest), s.Resolve(dest)); err != nil {
		return fmt.Errorf("%w: commit file: %v", errpkg.ErrFilesystem, err)
	}
	return nil
}

// Size returns the size of the committed artifact in bytes.
func (s *FileStorage) Size(dest string) (int64, error) {
	info, err := os.Stat(s.Resolve(dest))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes the artifact at dest along with any partial file. Missing
// files are not an error.
func (s *FileStorage) Remove(dest string) error {
	var errs []error
	for _, p := range []string{s.Resolve(dest), s.PartPath(dest)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: remove artifact: %v", errpkg.ErrFilesystem, errors.Join(errs...))
	}
	return nil
}
