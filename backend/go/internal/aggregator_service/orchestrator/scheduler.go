package orchestrator

import (
	"context"
	"sync"
	"time"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"
)

// SweepRunner runs one sweep.
type SweepRunner interface {
	RunSweep(ctx context.Context, trigger models.RefreshTrigger) (*models.SweepReport, error)
}

// Scheduler runs a full sweep once a day at a fixed UTC time.
type Scheduler struct {
	runner     SweepRunner
	hour       int
	minute     int
	runOnStart bool
	now        func() time.Time
	log        *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler from the schedule configuration.
func NewScheduler(runner SweepRunner, cfg config.ScheduleConfig, log *logger.Logger) (*Scheduler, error) {
	hour, minute, err := config.ParseClock(cfg.RunAt)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		runner:     runner,
		hour:       hour,
		minute:     minute,
		runOnStart: cfg.RunOnStart,
		now:        time.Now,
		log:        log,
	}, nil
}

// NextRun returns the first scheduled instant strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start blocks running the daily loop until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if s.runOnStart {
		s.run(ctx, models.TriggerStartup)
	}

	for {
		next := s.NextRun(s.now())
		s.log.WithPayload(map[string]interface{}{"next_run": next.Format(time.RFC3339)}).Info("Next scheduled sweep")
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
			s.run(ctx, models.TriggerSchedule)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, source string) {
	s.wg.Add(1)
	defer s.wg.Done()
	trigger := models.RefreshTrigger{Source: source, RequestedAt: s.now().UTC()}
	if _, err := s.runner.RunSweep(ctx, trigger); err != nil {
		s.log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Scheduled sweep did not run")
	}
}

// Stop ends the loop and waits for a sweep in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}
