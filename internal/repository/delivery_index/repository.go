// Package delivery_index remembers which notification jobs were delivered so a
// webhook retried after a restart does not notify twice.
package delivery_index

import (
	"context"
	"sync"
	"time"
)

type DeliveryIndex interface {
	WasDelivered(ctx context.Context, jobID string) (bool, error)
	MarkDelivered(ctx context.Context, jobID string) error
}

// MemoryIndex is the in-process index used when no redis is configured. It
// forgets entries after ttl and does not survive a restart.
type MemoryIndex struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryIndex(ttl time.Duration) *MemoryIndex {
	return &MemoryIndex{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (i *MemoryIndex) WasDelivered(ctx context.Context, jobID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	expiresAt, ok := i.entries[jobID]
	if !ok {
		return false, nil
	}
	if i.ttl > 0 && !i.now().Before(expiresAt) {
		delete(i.entries, jobID)
		return false, nil
	}
	return true, nil
}

func (i *MemoryIndex) MarkDelivered(ctx context.Context, jobID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	i.entries[jobID] = now.Add(i.ttl)
	if i.ttl > 0 {
		for id, expiresAt := range i.entries {
			if !now.Before(expiresAt) {
				delete(i.entries, id)
			}
		}
	}
	return nil
}
