package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/veranemoloko/bulk-downloader/internal/domain"
)

// ProgressStore defines the durable record of completed task keys.
type ProgressStore interface {
	// Load reads the last checkpoint and seeds the completed set from it.
	// It returns nil and no error when nothing has been saved yet.
	Load(ctx context.Context) (*domain.Checkpoint, error)
	// Save persists a fully formed checkpoint.
	Save(ctx context.Context, cp *domain.Checkpoint) error
	IsCompleted(key string) bool
	MarkCompleted(key string)
	CompletedKeys() []string
}

// completedSet is the in-memory completed-key set shared by the backends.
// Keys are only ever added.
type completedSet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func newCompletedSet() *completedSet {
	return &completedSet{keys: make(map[string]struct{})}
}

func (s *completedSet) IsCompleted(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

func (s *completedSet) MarkCompleted(key string) {
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
}

func (s *completedSet) addAll(keys []string) {
	s.mu.Lock()
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	s.mu.Unlock()
}

// CompletedKeys returns the completed keys in sorted order.
func (s *completedSet) CompletedKeys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// mergeKeys folds the in-memory set into cp so a checkpoint never drops a key
// the store already knows about.
func (s *completedSet) mergeKeys(cp *domain.Checkpoint) {
	s.addAll(cp.CompletedKeys)
	cp.CompletedKeys = s.CompletedKeys()
}
