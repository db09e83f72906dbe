package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

// Runs only against a real server: REDIS_URL=redis://localhost:6379/0 go test ./...
func newTestRedisStore(t *testing.T) (*RedisProgressStore, string) {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	client, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)

	prefix := "bulk-downloader-test:" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		_ = client.Del(ctx, prefix+":completed", prefix+":checkpoint").Err()
		_ = client.Close()
	})
	return NewRedisProgressStore(client, prefix), prefix
}

func TestRedisProgressStore_SaveAndReload(t *testing.T) {
	store, prefix := newTestRedisStore(t)
	ctx := context.Background()

	cp, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)

	store.MarkCompleted("src_a.pdf")
	stats := domain.NewStatistics(10)
	stats.Downloaded = 1
	require.NoError(t, store.Save(ctx, &domain.Checkpoint{RunID: "r1", Stats: stats}))

	reloaded := NewRedisProgressStore(store.client, prefix)
	got, err := reloaded.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"src_a.pdf"}, got.CompletedKeys)
	assert.Equal(t, 1, got.Stats.Downloaded)
	assert.True(t, reloaded.IsCompleted("src_a.pdf"))
}

func TestRedisProgressStore_SetIsMonotonic(t *testing.T) {
	store, prefix := newTestRedisStore(t)
	ctx := context.Background()

	store.MarkCompleted("a")
	require.NoError(t, store.Save(ctx, &domain.Checkpoint{}))

	other := NewRedisProgressStore(store.client, prefix)
	other.MarkCompleted("b")
	require.NoError(t, other.Save(ctx, &domain.Checkpoint{}))

	members, err := store.client.SMembers(ctx, prefix+":completed").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)
}
