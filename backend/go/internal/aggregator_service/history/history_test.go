package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"TechPulse/backend/go/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(i int) *models.SweepReport {
	start := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC).Add(time.Duration(i) * 24 * time.Hour)
	return &models.SweepReport{
		SweepID:    fmt.Sprintf("sweep-%d", i),
		Source:     models.TriggerSchedule,
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Pairs: []models.PairResult{
			{Key: "ai#daily", Status: models.PairRefreshed},
			{Key: "ml#daily", Status: models.PairFailed, Error: "cache write failed"},
		},
	}
}

func TestMemoryRecorderKeepsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, rec.Record(ctx, report(i)))
	}

	got, err := rec.Recent(ctx, 10)
	require.NoError(t, err)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.SweepID)
	}
	assert.Equal(t, []string{"sweep-5", "sweep-4", "sweep-3"}, ids)

	got, err = rec.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sweep-5", got[0].SweepID)
}

func TestMemoryRecorderCopiesReports(t *testing.T) {
	ctx := context.Background()
	rec := NewMemoryRecorder(0)
	r := report(1)
	require.NoError(t, rec.Record(ctx, r))
	r.Pairs[0].Status = models.PairAbandoned

	got, err := rec.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, models.PairRefreshed, got[0].Pairs[0].Status)
}

func TestSweepRecordRoundTrip(t *testing.T) {
	r := report(2)
	r.Delivered, r.Dead = 4, 1
	record, err := models.NewSweepRecord(r)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Refreshed)
	assert.Equal(t, 1, record.Failed)
	assert.Equal(t, 0, record.Abandoned)
	assert.Equal(t, "sweep_reports", record.TableName())

	back, err := record.SweepReport()
	require.NoError(t, err)
	if diff := cmp.Diff(r, back); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}
