package store

import (
	"context"
	"fmt"
	"time"

	"TechPulse/backend/go/internal/models"
)

// ContentStore persists one CacheRecord per (section, period).
// Upsert replaces a single slot wholesale; concurrent writers to the same
// key race and the last write wins.
type ContentStore interface {
	Upsert(ctx context.Context, key models.CacheKey, itemType models.ItemType, gen models.Generation) (*models.Slot, error)
	// Read returns (nil, nil) when nothing was ever written for key.
	Read(ctx context.Context, key models.CacheKey) (*models.CacheRecord, error)
}

// Option configures the shared parts of every backend.
type Option func(*base)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

type base struct {
	ttl time.Duration
	now func() time.Time
}

func newBase(ttl time.Duration, opts []Option) (base, error) {
	if ttl <= 0 {
		return base{}, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	b := base{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

func (b base) slot(gen models.Generation) (*models.Slot, time.Time) {
	now := b.now().UTC()
	return models.NewSlot(gen, now, b.ttl), now
}

func validItemType(t models.ItemType) error {
	switch t {
	case models.ItemTypeNews, models.ItemTypePatents:
		return nil
	default:
		return fmt.Errorf("unknown item type %q", t)
	}
}
