package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"TechPulse/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ttl = 24 * time.Hour

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func gen(provider string, scores ...int) models.Generation {
	g := models.Generation{Provider: provider, VerificationSummary: "verified by " + provider}
	for i, s := range scores {
		g.Items = append(g.Items, models.ContentItem{ID: fmt.Sprintf("%s-%d", provider, i), Title: "t", Summary: "s", Score: s})
	}
	return g
}

type factory func(t *testing.T, c *clock) ContentStore

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, c *clock) ContentStore {
			s, err := NewMemoryContentStore(ttl, WithClock(c.Now))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T, c *clock) ContentStore {
			s, err := OpenSQLiteContentStore(filepath.Join(t.TempDir(), "cache.db"), ttl, WithClock(c.Now))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"cached-memory": func(t *testing.T, c *clock) ContentStore {
			inner, err := NewMemoryContentStore(ttl, WithClock(c.Now))
			require.NoError(t, err)
			s, err := NewCachedContentStore(inner, 8, time.Minute)
			require.NoError(t, err)
			return s
		},
	}
}

func TestReadAbsent(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, &clock{t: time.Unix(1_700_000_000, 0).UTC()})
			rec, err := s.Read(context.Background(), models.NewCacheKey(models.SectionAI, models.PeriodDaily))
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}
}

func TestUpsertReplacesSlotAndSetsExpiry(t *testing.T) {
	ctx := context.Background()
	key := models.NewCacheKey(models.SectionQuantum, models.PeriodWeekly)
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			c := &clock{t: time.Unix(1_700_000_000, 0).UTC()}
			s := mk(t, c)

			_, err := s.Upsert(ctx, key, models.ItemTypeNews, gen("a", 90, 90, 90, 90, 90))
			require.NoError(t, err)
			c.Advance(time.Hour)
			slot, err := s.Upsert(ctx, key, models.ItemTypeNews, gen("b", 80, 60))
			require.NoError(t, err)
			assert.Equal(t, 70.0, slot.AggregateScore)

			rec, err := s.Read(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, key, rec.Key)
			assert.Equal(t, models.SectionQuantum, rec.Section)
			assert.Equal(t, models.PeriodWeekly, rec.Period)
			assert.Nil(t, rec.Patents)

			require.NotNil(t, rec.News)
			assert.Equal(t, "b", rec.News.Provider)
			require.Len(t, rec.News.Items, 2, "second write replaces, never merges")
			assert.Equal(t, "b-0", rec.News.Items[0].ID)
			assert.True(t, rec.News.ExpiresAt.Equal(c.Now().Add(ttl)))
			assert.True(t, rec.News.GeneratedAt.Equal(c.Now()))
			assert.Equal(t, 70.0, rec.News.AggregateScore)
		})
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	key := models.NewCacheKey(models.SectionIoT, models.PeriodDaily)
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, &clock{t: time.Unix(1_700_000_000, 0).UTC()})
			_, err := s.Upsert(ctx, key, models.ItemTypeNews, gen("news", 50))
			require.NoError(t, err)
			_, err = s.Upsert(ctx, key, models.ItemTypePatents, gen("patents", 70, 70))
			require.NoError(t, err)

			rec, err := s.Read(ctx, key)
			require.NoError(t, err)
			require.NotNil(t, rec.News)
			require.NotNil(t, rec.Patents)
			assert.Equal(t, "news", rec.News.Provider)
			assert.Equal(t, "patents", rec.Patents.Provider)
			assert.Len(t, rec.Patents.Items, 2)
		})
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	key := models.NewCacheKey(models.SectionML, models.PeriodMonthly)
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			s := mk(t, &clock{t: time.Unix(1_700_000_000, 0).UTC()})
			g := gen("p", 10, 20, 30)
			_, err := s.Upsert(ctx, key, models.ItemTypeNews, g)
			require.NoError(t, err)
			first, err := s.Read(ctx, key)
			require.NoError(t, err)
			_, err = s.Upsert(ctx, key, models.ItemTypeNews, g)
			require.NoError(t, err)
			second, err := s.Read(ctx, key)
			require.NoError(t, err)

			assert.Equal(t, first.News.Items, second.News.Items)
			assert.Equal(t, first.News.AggregateScore, second.News.AggregateScore)
		})
	}
}

func TestRejectsUnknownItemTypeAndBadTTL(t *testing.T) {
	_, err := NewMemoryContentStore(0)
	assert.Error(t, err)

	s, err := NewMemoryContentStore(ttl)
	require.NoError(t, err)
	_, err = s.Upsert(context.Background(), "ai#daily", "videos", gen("p", 1))
	assert.Error(t, err)
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	inner, err := NewMemoryContentStore(ttl)
	require.NoError(t, err)
	s, err := NewCachedContentStore(inner, 4, time.Hour)
	require.NoError(t, err)

	key := models.NewCacheKey(models.SectionAI, models.PeriodYearly)
	_, err = s.Upsert(ctx, key, models.ItemTypeNews, gen("a", 1))
	require.NoError(t, err)
	rec, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a", rec.News.Provider)

	rec.News.Provider = "mutated"
	again, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a", again.News.Provider, "callers get copies")

	_, err = s.Upsert(ctx, key, models.ItemTypeNews, gen("b", 1))
	require.NoError(t, err)
	rec, err = s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.News.Provider)
}

// gatedStore holds its first Read after loading the record, so a write can
// land between the load and the return.
type gatedStore struct {
	ContentStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedStore) Read(ctx context.Context, key models.CacheKey) (*models.CacheRecord, error) {
	rec, err := g.ContentStore.Read(ctx, key)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return rec, err
}

func TestCachedStoreSkipsReadRacingAWrite(t *testing.T) {
	ctx := context.Background()
	inner, err := NewMemoryContentStore(ttl)
	require.NoError(t, err)
	key := models.NewCacheKey(models.SectionIoT, models.PeriodWeekly)
	_, err = inner.Upsert(ctx, key, models.ItemTypeNews, gen("old", 1))
	require.NoError(t, err)

	gated := &gatedStore{ContentStore: inner, loaded: make(chan struct{}), release: make(chan struct{})}
	s, err := NewCachedContentStore(gated, 4, time.Hour)
	require.NoError(t, err)

	done := make(chan *models.CacheRecord)
	go func() {
		rec, _ := s.Read(ctx, key)
		done <- rec
	}()
	<-gated.loaded
	_, err = s.Upsert(ctx, key, models.ItemTypeNews, gen("new", 1))
	require.NoError(t, err)
	close(gated.release)
	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, "old", stale.News.Provider)

	rec, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "new", rec.News.Provider)
}

func TestConcurrentWritersLastOneWins(t *testing.T) {
	ctx := context.Background()
	s, err := NewMemoryContentStore(ttl)
	require.NoError(t, err)
	key := models.NewCacheKey(models.SectionAI, models.PeriodDaily)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Upsert(ctx, key, models.ItemTypeNews, gen(fmt.Sprintf("w%d", i), i))
		}(i)
	}
	wg.Wait()

	rec, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.Len(t, rec.News.Items, 1, "one complete generation survives, never a mix")
	assert.Equal(t, rec.News.Provider+"-0", rec.News.Items[0].ID)
}
