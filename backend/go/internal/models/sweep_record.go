package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SweepRecord 是扫描报告在 MySQL 中的持久化形式，完整报告以 JSON 列保存。
type SweepRecord struct {
	ID         uint      `gorm:"primarykey"`
	SweepID    string    `gorm:"size:64;uniqueIndex;not null"`
	Source     string    `gorm:"size:32;not null"`
	StartedAt  time.Time `gorm:"index;not null"`
	FinishedAt time.Time
	Refreshed  int
	Failed     int
	Abandoned  int
	Delivered  int
	Dead       int
	Report     datatypes.JSON
}

func (SweepRecord) TableName() string {
	return "sweep_reports"
}

// NewSweepRecord 由扫描报告构造持久化记录。
func NewSweepRecord(r *SweepReport) (*SweepRecord, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return &SweepRecord{
		SweepID:    r.SweepID,
		Source:     r.Source,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Refreshed:  len(r.Keys(PairRefreshed)),
		Failed:     len(r.Keys(PairFailed)),
		Abandoned:  len(r.Keys(PairAbandoned)),
		Delivered:  r.Delivered,
		Dead:       r.Dead,
		Report:     datatypes.JSON(data),
	}, nil
}

// SweepReport 还原记录中保存的完整报告。
func (r *SweepRecord) SweepReport() (*SweepReport, error) {
	var report SweepReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
