package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"TechPulse/backend/go/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteContentStore stores one row per (key, slot) for single-node deployments.
type SQLiteContentStore struct {
	base
	db *sql.DB
}

// OpenSQLiteContentStore opens (or creates) the database at path.
func OpenSQLiteContentStore(path string, ttl time.Duration, opts ...Option) (*SQLiteContentStore, error) {
	b, err := newBase(ttl, opts)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteContentStore{base: b, db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteContentStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS content_slots (
			cache_key            TEXT NOT NULL,
			item_type            TEXT NOT NULL,
			section              TEXT NOT NULL,
			period               TEXT NOT NULL,
			items                TEXT NOT NULL,
			provider             TEXT NOT NULL,
			verification_summary TEXT NOT NULL,
			aggregate_score      REAL NOT NULL,
			generated_at         DATETIME NOT NULL,
			expires_at           DATETIME NOT NULL,
			created_at           DATETIME NOT NULL,
			updated_at           DATETIME NOT NULL,
			PRIMARY KEY (cache_key, item_type)
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteContentStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteContentStore) Upsert(ctx context.Context, key models.CacheKey, itemType models.ItemType, gen models.Generation) (*models.Slot, error) {
	if err := validItemType(itemType); err != nil {
		return nil, err
	}
	slot, now := s.slot(gen)
	items, err := json.Marshal(slot.Items)
	if err != nil {
		return nil, fmt.Errorf("encoding items: %w", err)
	}
	section, period := key.Split()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO content_slots (cache_key, item_type, section, period, items, provider,
			verification_summary, aggregate_score, generated_at, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key, item_type) DO UPDATE SET
			items = excluded.items,
			provider = excluded.provider,
			verification_summary = excluded.verification_summary,
			aggregate_score = excluded.aggregate_score,
			generated_at = excluded.generated_at,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, string(key), string(itemType), string(section), string(period), string(items), slot.Provider,
		slot.VerificationSummary, slot.AggregateScore, slot.GeneratedAt, slot.ExpiresAt, now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting %s/%s: %w", key, itemType, err)
	}
	return slot, nil
}

func (s *SQLiteContentStore) Read(ctx context.Context, key models.CacheKey) (*models.CacheRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_type, section, period, items, provider, verification_summary,
			aggregate_score, generated_at, expires_at, created_at, updated_at
		FROM content_slots WHERE cache_key = ?
	`, string(key))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	defer rows.Close()

	var rec *models.CacheRecord
	for rows.Next() {
		var (
			itemType, section, period, items string
			slot                             models.Slot
			createdAt, updatedAt             time.Time
		)
		if err := rows.Scan(&itemType, &section, &period, &items, &slot.Provider, &slot.VerificationSummary,
			&slot.AggregateScore, &slot.GeneratedAt, &slot.ExpiresAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", key, err)
		}
		if err := json.Unmarshal([]byte(items), &slot.Items); err != nil {
			return nil, fmt.Errorf("decoding items for %s: %w", key, err)
		}
		if rec == nil {
			rec = &models.CacheRecord{
				Key:     key,
				Section: models.Section(section),
				Period:  models.Period(period),
			}
		}
		if rec.CreatedAt.IsZero() || createdAt.Before(rec.CreatedAt) {
			rec.CreatedAt = createdAt
		}
		if updatedAt.After(rec.UpdatedAt) {
			rec.UpdatedAt = updatedAt
		}
		written := slot
		rec.SetSlot(models.ItemType(itemType), &written)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", key, err)
	}
	return rec, nil
}
