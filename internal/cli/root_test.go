package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/bulk-downloader/internal/config"
	"github.com/veranemoloko/bulk-downloader/internal/repository"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "downloader dev")
	assert.Contains(t, out.String(), "go version:")
}

func TestOpenStore_File(t *testing.T) {
	cfg := &config.Config{
		StoreBackend:   config.StoreFile,
		CheckpointFile: filepath.Join(t.TempDir(), "progress.json"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, closeStore, err := openStore(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer closeStore()

	fileStore, ok := store.(*repository.FileProgressStore)
	require.True(t, ok)
	assert.Equal(t, cfg.CheckpointFile, fileStore.Path())
}

func TestOpenStore_Unknown(t *testing.T) {
	cfg := &config.Config{StoreBackend: "sqlite"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, _, err := openStore(context.Background(), cfg, logger)
	assert.ErrorContains(t, err, "unknown store backend")
}
