package store

import (
	"context"
	"sync"
	"time"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/util"
)

// CachedContentStore puts an in-process LRU in front of another store.
// Writes go through and drop the cached record for that key. A read that
// raced with a write on the same key is not cached.
type CachedContentStore struct {
	inner ContentStore
	lru   *util.LRUCache[models.CacheKey, *models.CacheRecord]

	mu       sync.Mutex
	versions map[models.CacheKey]uint64
}

// NewCachedContentStore wraps inner with an LRU of the given capacity and ttl.
func NewCachedContentStore(inner ContentStore, capacity int, ttl time.Duration) (*CachedContentStore, error) {
	lru, err := util.NewWithConfig[models.CacheKey, *models.CacheRecord](util.CacheConfig{
		Capacity: capacity,
		TTL:      ttl,
	})
	if err != nil {
		return nil, err
	}
	return &CachedContentStore{inner: inner, lru: lru, versions: make(map[models.CacheKey]uint64)}, nil
}

func (s *CachedContentStore) Upsert(ctx context.Context, key models.CacheKey, itemType models.ItemType, gen models.Generation) (*models.Slot, error) {
	slot, err := s.inner.Upsert(ctx, key, itemType, gen)
	s.mu.Lock()
	s.versions[key]++
	s.lru.Delete(key)
	s.mu.Unlock()
	return slot, err
}

func (s *CachedContentStore) Read(ctx context.Context, key models.CacheKey) (*models.CacheRecord, error) {
	if rec, ok := s.lru.Get(key); ok {
		return cloneRecord(rec), nil
	}
	s.mu.Lock()
	version := s.versions[key]
	s.mu.Unlock()

	rec, err := s.inner.Read(ctx, key)
	if err != nil || rec == nil {
		return rec, err
	}
	s.mu.Lock()
	if s.versions[key] == version {
		s.lru.Put(key, cloneRecord(rec), 1)
	}
	s.mu.Unlock()
	return rec, nil
}

func cloneRecord(r *models.CacheRecord) *models.CacheRecord {
	out := *r
	out.News = cloneSlot(r.News)
	out.Patents = cloneSlot(r.Patents)
	return &out
}
