// Package history keeps the reports of past refresh sweeps.
package history

import (
	"context"
	"fmt"
	"sync"

	"TechPulse/backend/go/internal/models"

	"gorm.io/gorm"
)

// DefaultLimit is used when callers ask for a non-positive number of reports.
const DefaultLimit = 20

// Recorder stores sweep reports and lists the most recent ones first.
type Recorder interface {
	Record(ctx context.Context, report *models.SweepReport) error
	Recent(ctx context.Context, limit int) ([]models.SweepReport, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// MemoryRecorder keeps the last `capacity` reports in process.
type MemoryRecorder struct {
	mu       sync.RWMutex
	capacity int
	reports  []models.SweepReport
}

// NewMemoryRecorder creates a MemoryRecorder; capacity <= 0 means 100.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryRecorder{capacity: capacity}
}

func (m *MemoryRecorder) Record(_ context.Context, report *models.SweepReport) error {
	if report == nil {
		return nil
	}
	cp := *report
	cp.Pairs = append([]models.PairResult(nil), report.Pairs...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, cp)
	if over := len(m.reports) - m.capacity; over > 0 {
		m.reports = append([]models.SweepReport(nil), m.reports[over:]...)
	}
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]models.SweepReport, error) {
	limit = normalizeLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SweepReport, 0, min(limit, len(m.reports)))
	for i := len(m.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.reports[i])
	}
	return out, nil
}

// GormRecorder persists reports to MySQL through gorm.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder migrates the sweep_reports table and returns a recorder.
func NewGormRecorder(db *gorm.DB) (*GormRecorder, error) {
	if err := db.AutoMigrate(&models.SweepRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sweep history: %w", err)
	}
	return &GormRecorder{db: db}, nil
}

func (g *GormRecorder) Record(ctx context.Context, report *models.SweepReport) error {
	record, err := models.NewSweepRecord(report)
	if err != nil {
		return fmt.Errorf("failed to encode sweep %s: %w", report.SweepID, err)
	}
	if err := g.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to store sweep %s: %w", report.SweepID, err)
	}
	return nil
}

func (g *GormRecorder) Recent(ctx context.Context, limit int) ([]models.SweepReport, error) {
	var records []models.SweepRecord
	err := g.db.WithContext(ctx).
		Order("started_at desc").
		Limit(normalizeLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	out := make([]models.SweepReport, 0, len(records))
	for i := range records {
		report, err := records[i].SweepReport()
		if err != nil {
			return nil, fmt.Errorf("failed to decode sweep %s: %w", records[i].SweepID, err)
		}
		out = append(out, *report)
	}
	return out, nil
}
