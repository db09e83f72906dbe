package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

func TestFileProgressStore_LoadMissingFile(t *testing.T) {
	store := NewFileProgressStore(filepath.Join(t.TempDir(), "progress.json"))

	cp, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, store.IsCompleted("anything"))
}

func TestFileProgressStore_SaveAndReload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state", "progress.json")
	store := NewFileProgressStore(file)

	store.MarkCompleted("src_b.pdf")
	store.MarkCompleted("src_a.pdf")

	stats := domain.NewStatistics(10)
	stats.Downloaded = 2
	stats.Bytes = 4096
	cp := &domain.Checkpoint{RunID: "run-1", Stats: stats}
	require.NoError(t, store.Save(context.Background(), cp))
	assert.Equal(t, []string{"src_a.pdf", "src_b.pdf"}, cp.CompletedKeys)
	assert.False(t, cp.LastSaved.IsZero())

	reloaded := NewFileProgressStore(file)
	got, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, []string{"src_a.pdf", "src_b.pdf"}, got.CompletedKeys)
	assert.Equal(t, 2, got.Stats.Downloaded)
	assert.Equal(t, int64(4096), got.Stats.Bytes)
	assert.True(t, reloaded.IsCompleted("src_a.pdf"))
	assert.True(t, reloaded.IsCompleted("src_b.pdf"))
}

func TestFileProgressStore_SaveNeverDropsKeys(t *testing.T) {
	store := NewFileProgressStore(filepath.Join(t.TempDir(), "progress.json"))
	store.MarkCompleted("src_a.pdf")

	cp := &domain.Checkpoint{CompletedKeys: []string{"src_c.pdf"}, LastSaved: time.Now()}
	require.NoError(t, store.Save(context.Background(), cp))

	assert.Equal(t, []string{"src_a.pdf", "src_c.pdf"}, cp.CompletedKeys)
	assert.True(t, store.IsCompleted("src_c.pdf"))
}

func TestFileProgressStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewFileProgressStore(filepath.Join(dir, "progress.json"))
	store.MarkCompleted("k")

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(context.Background(), &domain.Checkpoint{}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "progress.json", entries[0].Name())
}

func TestFileProgressStore_CorruptFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))

	_, err := NewFileProgressStore(file).Load(context.Background())
	assert.Error(t, err)
}

func TestFileProgressStore_EmptyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	cp, err := NewFileProgressStore(file).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestFileProgressStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileProgressStore(filepath.Join(t.TempDir(), "progress.json"))
	assert.ErrorIs(t, store.Save(ctx, &domain.Checkpoint{}), context.Canceled)
}
