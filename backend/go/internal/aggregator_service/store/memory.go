package store

import (
	"context"
	"sync"
	"time"

	"TechPulse/backend/go/internal/models"
)

// MemoryContentStore keeps records in process. Used for tests and local runs.
type MemoryContentStore struct {
	base
	mu      sync.RWMutex
	records map[models.CacheKey]*models.CacheRecord
}

// NewMemoryContentStore creates an empty in-memory store.
func NewMemoryContentStore(ttl time.Duration, opts ...Option) (*MemoryContentStore, error) {
	b, err := newBase(ttl, opts)
	if err != nil {
		return nil, err
	}
	return &MemoryContentStore{base: b, records: make(map[models.CacheKey]*models.CacheRecord)}, nil
}

func (s *MemoryContentStore) Upsert(ctx context.Context, key models.CacheKey, itemType models.ItemType, gen models.Generation) (*models.Slot, error) {
	if err := validItemType(itemType); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot, now := s.slot(gen)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		section, period := key.Split()
		rec = &models.CacheRecord{Key: key, Section: section, Period: period, CreatedAt: now}
		s.records[key] = rec
	}
	rec.SetSlot(itemType, slot)
	rec.UpdatedAt = now
	return cloneSlot(slot), nil
}

func (s *MemoryContentStore) Read(ctx context.Context, key models.CacheKey) (*models.CacheRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	out := *rec
	out.News = cloneSlot(rec.News)
	out.Patents = cloneSlot(rec.Patents)
	return &out, nil
}

func cloneSlot(s *models.Slot) *models.Slot {
	if s == nil {
		return nil
	}
	out := *s
	out.Items = append([]models.ContentItem(nil), s.Items...)
	return &out
}
