// Package orchestrator fans refreshes out across (section, period) keys and
// notifies live subscribers once a sweep is over.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TechPulse/backend/go/internal/aggregator_service/history"
	"TechPulse/backend/go/internal/aggregator_service/notifier"
	"TechPulse/backend/go/internal/aggregator_service/service"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency  = 4
	defaultSweepTimeout = 10 * time.Minute
	notifyTimeout       = 10 * time.Second
)

// PairRefresher refreshes both slots of one key.
type PairRefresher interface {
	RefreshPair(ctx context.Context, key models.CacheKey) ([]*service.Result, error)
}

// Broadcaster delivers the change notification.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte, ids []string) *notifier.BroadcastReport
}

// Config bounds a sweep.
type Config struct {
	Concurrency  int
	SweepTimeout time.Duration
}

// Orchestrator runs refresh sweeps.
type Orchestrator struct {
	refresher   PairRefresher
	broadcaster Broadcaster
	recorder    history.Recorder
	concurrency int
	timeout     time.Duration
	base        context.Context
	now         func() time.Time
	log         *logger.Logger

	// inflight tracks work that may outlive RunSweep: abandoned pairs and
	// sweeps started through Trigger.
	inflight sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBaseContext sets the parent context of sweeps started by Trigger.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Orchestrator) {
		if ctx != nil {
			o.base = ctx
		}
	}
}

// New creates an Orchestrator. broadcaster and recorder may be nil.
func New(refresher PairRefresher, broadcaster Broadcaster, recorder history.Recorder, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		refresher:   refresher,
		broadcaster: broadcaster,
		recorder:    recorder,
		concurrency: cfg.Concurrency,
		timeout:     cfg.SweepTimeout,
		base:        context.Background(),
		now:         time.Now,
		log:         logger.Nop(),
	}
	if o.concurrency <= 0 {
		o.concurrency = defaultConcurrency
	}
	if o.timeout <= 0 {
		o.timeout = defaultSweepTimeout
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// sweep collects pair results. Once closed, late results are dropped from
// the report.
type sweep struct {
	mu      sync.Mutex
	results []*models.PairResult
	closed  bool
}

func (s *sweep) set(i int, r models.PairResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.results[i] = &r
	return true
}

func (s *sweep) close(keys []models.CacheKey) []models.PairResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	out := make([]models.PairResult, len(keys))
	for i, key := range keys {
		if s.results[i] != nil {
			out[i] = *s.results[i]
			continue
		}
		out[i] = models.PairResult{Key: key, Status: models.PairAbandoned, Error: "sweep deadline exceeded"}
	}
	return out
}

// RunSweep refreshes every key named by trigger. Pairs run concurrently and
// independently; pairs still running at the sweep deadline are reported as
// abandoned and keep running in the background. The change notification is
// broadcast after the report is assembled.
func (o *Orchestrator) RunSweep(ctx context.Context, trigger models.RefreshTrigger) (*models.SweepReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if trigger.Source == "" {
		trigger.Source = models.TriggerHTTP
	}
	report := &models.SweepReport{
		SweepID:   uuid.NewString(),
		Source:    trigger.Source,
		StartedAt: o.now().UTC(),
	}
	log := o.log.WithTrace(report.SweepID)
	keys := trigger.Pairs()
	log.WithPayload(map[string]interface{}{"source": trigger.Source, "pairs": len(keys)}).Info("Sweep started")

	deadlineCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	// Pair work is detached from the sweep deadline so abandoned pairs can
	// still land their writes.
	workCtx := context.WithoutCancel(ctx)

	state := &sweep{results: make([]*models.PairResult, len(keys))}
	done := make(chan struct{})

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer close(done)
		var g errgroup.Group
		g.SetLimit(o.concurrency)
		for i, key := range keys {
			i, key := i, key
			g.Go(func() error {
				if deadlineCtx.Err() != nil {
					return nil
				}
				result := o.refreshPair(workCtx, log, key)
				if !state.set(i, result) {
					log.WithPayload(map[string]interface{}{"key": string(key), "status": string(result.Status)}).
						Warn("Abandoned pair finished after the sweep deadline")
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-deadlineCtx.Done():
		log.WithPayload(map[string]interface{}{"timeout": o.timeout.String()}).Warn("Sweep deadline reached, abandoning unfinished pairs")
	}

	report.Pairs = state.close(keys)
	report.FinishedAt = o.now().UTC()
	o.notify(ctx, log, report, trigger.Connections)
	o.record(ctx, log, report)

	log.WithPayload(map[string]interface{}{
		"refreshed":   len(report.Keys(models.PairRefreshed)),
		"failed":      len(report.Keys(models.PairFailed)),
		"abandoned":   len(report.Keys(models.PairAbandoned)),
		"delivered":   report.Delivered,
		"dead":        report.Dead,
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}).Info("Sweep finished")
	return report, nil
}

func (o *Orchestrator) refreshPair(ctx context.Context, log *logger.Logger, key models.CacheKey) (result models.PairResult) {
	start := o.now()
	result.Key = key
	defer func() {
		if r := recover(); r != nil {
			result.Status = models.PairFailed
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.FinishedAt = o.now().UTC()
		result.Duration = result.FinishedAt.Sub(start)
		if result.Status == models.PairFailed {
			log.WithPayload(map[string]interface{}{"key": string(key)}).
				WithError(models.ErrorInfo{Message: result.Error, Type: models.ErrTypeStore}).
				Error("Pair refresh failed")
		}
	}()

	results, err := o.refresher.RefreshPair(ctx, key)
	for _, r := range results {
		result.Providers = append(result.Providers, r.Providers()...)
	}
	if err != nil {
		result.Status = models.PairFailed
		result.Error = err.Error()
		return result
	}
	result.Status = models.PairRefreshed
	return result
}

func (o *Orchestrator) notify(ctx context.Context, log *logger.Logger, report *models.SweepReport, connections []string) {
	if o.broadcaster == nil {
		return
	}
	payload, err := json.Marshal(report.Notification())
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).Error("Failed to encode change notification")
		return
	}
	// A cancelled caller must not turn every push into a dead connection.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	br := o.broadcaster.Broadcast(notifyCtx, payload, connections)
	if br != nil {
		report.Delivered = len(br.Delivered)
		report.Dead = len(br.Dead)
	}
}

func (o *Orchestrator) record(ctx context.Context, log *logger.Logger, report *models.SweepReport) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), report); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).Warn("Failed to record sweep history")
	}
}

// Trigger starts a sweep in the background on the base context.
func (o *Orchestrator) Trigger(trigger models.RefreshTrigger) {
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		if _, err := o.RunSweep(o.base, trigger); err != nil {
			o.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Triggered sweep did not run")
		}
	}()
}

// Wait blocks until background sweeps and abandoned pairs finish, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
