package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
	errpkg "github.com/veranemoloko/bulk-downloader/internal/errors"
)

// FileProgressStore keeps the checkpoint in a single JSON file.
type FileProgressStore struct {
	*completedSet
	file string
}

// NewFileProgressStore creates a store backed by filePath. Nothing is read
// until Load is called.
func NewFileProgressStore(filePath string) *FileProgressStore {
	return &FileProgressStore{
		completedSet: newCompletedSet(),
		file:         filepath.Clean(filePath),
	}
}

// Path returns the checkpoint file location.
func (r *FileProgressStore) Path() string {
	return r.file
}

// Load reads the checkpoint file, if any, and seeds the completed set.
func (r *FileProgressStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.file)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("checkpoint file does not exist, starting with empty progress", "file_path", r.file)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	if len(data) == 0 {
		slog.Warn("checkpoint file is empty", "file_path", r.file)
		return nil, nil
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint file: %w", err)
	}

	r.addAll(cp.CompletedKeys)
	slog.Info("checkpoint loaded", "completed", len(cp.CompletedKeys), "file_path", r.file)
	return &cp, nil
}

// Save writes cp to a temporary file, syncs it and renames it over the
// checkpoint, so a crash leaves either the old or the new file.
func (r *FileProgressStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mergeKeys(cp)
	if cp.LastSaved.IsZero() {
		cp.LastSaved = time.Now().UTC()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal checkpoint: %v", errpkg.ErrCheckpointPersistence, err)
	}

	if err := writeFileAtomic(r.file, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errpkg.ErrCheckpointPersistence, err)
	}

	slog.Debug("checkpoint saved", "completed", len(cp.CompletedKeys), "file_path", r.file)
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	committed = true

	// Best effort: persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
