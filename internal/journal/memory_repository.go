package journal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
	byHash  map[string]int
}

// NewMemoryRepository builds an in-memory journal, used when no database is configured.
func NewMemoryRepository() Repository {
	return &memoryRepository{byHash: make(map[string]int)}
}

func (r *memoryRepository) Append(_ context.Context, entry Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byHash[entry.Hash]; exists {
		return Entry{}, fmt.Errorf("journal entry %s already exists", entry.Hash)
	}
	entry = stamp(entry, time.Now())
	r.byHash[entry.Hash] = len(r.entries)
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *memoryRepository) UpdateState(_ context.Context, hash string, state State, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byHash[hash]
	if !ok {
		return ErrEntryNotFound
	}
	r.entries[i].State = state
	r.entries[i].Error = reason
	r.entries[i].UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) List(_ context.Context, fundsAddress string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if fundsAddress == "" || r.entries[i].FundsAddress == fundsAddress {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}
