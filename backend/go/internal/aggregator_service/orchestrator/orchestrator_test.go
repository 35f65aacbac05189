package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TechPulse/backend/go/internal/aggregator_service/cascade"
	"TechPulse/backend/go/internal/aggregator_service/history"
	"TechPulse/backend/go/internal/aggregator_service/notifier"
	"TechPulse/backend/go/internal/aggregator_service/service"
	"TechPulse/backend/go/internal/aggregator_service/store"
	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type refresherFunc func(ctx context.Context, key models.CacheKey) ([]*service.Result, error)

func (f refresherFunc) RefreshPair(ctx context.Context, key models.CacheKey) ([]*service.Result, error) {
	return f(ctx, key)
}

type captureBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
	ids      [][]string
}

func (c *captureBroadcaster) Broadcast(_ context.Context, payload []byte, ids []string) *notifier.BroadcastReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	c.ids = append(c.ids, ids)
	return &notifier.BroadcastReport{Delivered: []string{"c1", "c2"}, Dead: []string{"c3"}}
}

func statusOf(report *models.SweepReport, key models.CacheKey) models.PairStatus {
	for _, p := range report.Pairs {
		if p.Key == key {
			return p.Status
		}
	}
	return ""
}

func TestRunSweepCoversCrossProduct(t *testing.T) {
	var calls atomic.Int32
	o := New(refresherFunc(func(context.Context, models.CacheKey) ([]*service.Result, error) {
		calls.Add(1)
		return nil, nil
	}), nil, nil, Config{Concurrency: 3})

	report, err := o.RunSweep(context.Background(), models.RefreshTrigger{Source: models.TriggerSchedule})
	require.NoError(t, err)
	assert.Equal(t, int32(16), calls.Load())
	require.Len(t, report.Pairs, 16)
	assert.Len(t, report.Keys(models.PairRefreshed), 16)
	assert.Equal(t, models.TriggerSchedule, report.Source)
	assert.NotEmpty(t, report.SweepID)
	require.NoError(t, o.Wait(context.Background()))
}

func TestRunSweepBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	o := New(refresherFunc(func(context.Context, models.CacheKey) ([]*service.Result, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	}), nil, nil, Config{Concurrency: 2})

	_, err := o.RunSweep(context.Background(), models.RefreshTrigger{})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	require.NoError(t, o.Wait(context.Background()))
}

func TestFailedPairDoesNotAffectOthers(t *testing.T) {
	st, err := store.NewMemoryContentStore(24 * time.Hour)
	require.NoError(t, err)
	healthy := provider.Func{ProviderName: "perplexity", Fn: func(_ context.Context, q provider.Query) (*models.ProviderResult, error) {
		return &models.ProviderResult{Provider: "perplexity", Confidence: 0.8, Items: []models.RawItem{{Title: string(q.Section) + " story"}}}, nil
	}}
	svc := service.NewAggregatorService(cascade.New([]provider.Provider{healthy}, nil), st)
	aiDaily := models.NewCacheKey(models.SectionAI, models.PeriodDaily)

	o := New(refresherFunc(func(ctx context.Context, key models.CacheKey) ([]*service.Result, error) {
		if key == aiDaily {
			return nil, service.ErrCacheWrite
		}
		return svc.RefreshPair(ctx, key)
	}), nil, nil, Config{Concurrency: 4})

	report, err := o.RunSweep(context.Background(), models.RefreshTrigger{
		Sections: []models.Section{models.SectionAI, models.SectionIoT},
		Periods:  []models.Period{models.PeriodDaily, models.PeriodWeekly},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PairFailed, statusOf(report, aiDaily))
	assert.Equal(t, []string{"ai#daily"}, report.Keys(models.PairFailed))

	iotWeekly := models.NewCacheKey(models.SectionIoT, models.PeriodWeekly)
	assert.Equal(t, models.PairRefreshed, statusOf(report, iotWeekly))
	record, err := st.Read(context.Background(), iotWeekly)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, record.News)
	assert.Equal(t, "iot story", record.News.Items[0].Title)
	require.NoError(t, o.Wait(context.Background()))
}

func TestPanickingPairIsReportedFailed(t *testing.T) {
	o := New(refresherFunc(func(_ context.Context, key models.CacheKey) ([]*service.Result, error) {
		if key == "ml#daily" {
			panic("boom")
		}
		return nil, nil
	}), nil, nil, Config{})

	report, err := o.RunSweep(context.Background(), models.RefreshTrigger{Sections: []models.Section{models.SectionML}})
	require.NoError(t, err)
	assert.Equal(t, models.PairFailed, statusOf(report, "ml#daily"))
	assert.Equal(t, models.PairRefreshed, statusOf(report, "ml#weekly"))
	require.NoError(t, o.Wait(context.Background()))
}

func TestSweepDeadlineAbandonsSlowPairs(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Int32
	o := New(refresherFunc(func(ctx context.Context, key models.CacheKey) ([]*service.Result, error) {
		if key == "quantum#yearly" {
			<-release
			// the pair's own context is not tied to the sweep deadline
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		finished.Add(1)
		return nil, nil
	}), nil, nil, Config{Concurrency: 16, SweepTimeout: 50 * time.Millisecond})

	report, err := o.RunSweep(context.Background(), models.RefreshTrigger{})
	require.NoError(t, err)
	assert.Equal(t, []string{"quantum#yearly"}, report.Keys(models.PairAbandoned))
	assert.Len(t, report.Keys(models.PairRefreshed), 15)

	close(release)
	require.NoError(t, o.Wait(context.Background()))
	assert.Equal(t, int32(16), finished.Load())
}

func TestSweepBroadcastsAndRecords(t *testing.T) {
	b := &captureBroadcaster{}
	rec := history.NewMemoryRecorder(10)
	o := New(refresherFunc(func(_ context.Context, key models.CacheKey) ([]*service.Result, error) {
		if key == "ai#weekly" {
			return nil, errors.New("cache write failed")
		}
		return nil, nil
	}), b, rec, Config{})

	report, err := o.RunSweep(context.Background(), models.RefreshTrigger{
		Sections:    []models.Section{models.SectionAI},
		Periods:     []models.Period{models.PeriodDaily, models.PeriodWeekly},
		Connections: []string{"c1", "c2", "c3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 1, report.Dead)

	require.Len(t, b.payloads, 1)
	assert.Equal(t, []string{"c1", "c2", "c3"}, b.ids[0])
	var note models.ChangeNotification
	require.NoError(t, json.Unmarshal(b.payloads[0], &note))
	assert.Equal(t, models.MessageTypeContentRefresh, note.Type)
	assert.Equal(t, report.SweepID, note.SweepID)
	assert.Equal(t, []string{"ai#daily"}, note.Refreshed)
	assert.Equal(t, []string{"ai#weekly"}, note.Failed)

	recent, err := rec.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, report.SweepID, recent[0].SweepID)
	require.NoError(t, o.Wait(context.Background()))
}

func TestRunSweepRejectsCancelledContext(t *testing.T) {
	o := New(refresherFunc(func(context.Context, models.CacheKey) ([]*service.Result, error) {
		t.Fatal("no pair should run")
		return nil, nil
	}), nil, nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.RunSweep(ctx, models.RefreshTrigger{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTriggerRunsInBackground(t *testing.T) {
	rec := history.NewMemoryRecorder(10)
	o := New(refresherFunc(func(context.Context, models.CacheKey) ([]*service.Result, error) {
		return nil, nil
	}), nil, rec, Config{})

	o.Trigger(models.RefreshTrigger{Source: models.TriggerBroker, Sections: []models.Section{models.SectionIoT}})
	require.NoError(t, o.Wait(context.Background()))

	recent, err := rec.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.TriggerBroker, recent[0].Source)
	assert.Len(t, recent[0].Pairs, 4)
}

type countingRunner struct {
	mu       sync.Mutex
	triggers []models.RefreshTrigger
}

func (c *countingRunner) RunSweep(_ context.Context, trigger models.RefreshTrigger) (*models.SweepReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggers = append(c.triggers, trigger)
	return &models.SweepReport{}, nil
}

func TestSchedulerNextRun(t *testing.T) {
	s, err := NewScheduler(&countingRunner{}, config.ScheduleConfig{RunAt: "06:30"}, nil)
	require.NoError(t, err)

	before := time.Date(2025, 4, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 1, 6, 30, 0, 0, time.UTC), s.NextRun(before))

	exact := time.Date(2025, 4, 1, 6, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 4, 2, 6, 30, 0, 0, time.UTC), s.NextRun(exact))

	offset := time.Date(2025, 4, 1, 23, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))
	assert.Equal(t, time.Date(2025, 4, 2, 6, 30, 0, 0, time.UTC), s.NextRun(offset))

	_, err = NewScheduler(&countingRunner{}, config.ScheduleConfig{RunAt: "25:00"}, nil)
	assert.Error(t, err)
}

func TestSchedulerRunsOnStartAndStops(t *testing.T) {
	runner := &countingRunner{}
	s, err := NewScheduler(runner, config.ScheduleConfig{RunAt: "06:00", RunOnStart: true}, nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.triggers) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	require.NoError(t, <-errCh)
	assert.Equal(t, models.TriggerStartup, runner.triggers[0].Source)
}
