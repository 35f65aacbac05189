// Package cascade tries providers in priority order and keeps the first
// non-empty answer.
package cascade

import (
	"context"
	"errors"
	"time"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/internal/provider"
	"TechPulse/backend/go/pkg/logger"
)

// State is the selector's position in the cascade.
type State int

const (
	// Try means provider Attempts[len-1] is being asked.
	Try State = iota
	// Selected means a provider returned at least one item.
	Selected
	// Exhausted means no provider returned items.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Try:
		return "try"
	case Selected:
		return "selected"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// AttemptStatus records how one provider call ended.
type AttemptStatus string

const (
	StatusUnavailable AttemptStatus = "unavailable"
	StatusEmpty       AttemptStatus = "empty"
	StatusFailed      AttemptStatus = "failed"
	StatusSelected    AttemptStatus = "selected"
)

// Attempt is one provider call made during a cascade.
type Attempt struct {
	Provider string
	Status   AttemptStatus
	Items    int
	Err      error
	Duration time.Duration
}

// Outcome is the result of running the cascade once.
type Outcome struct {
	State    State
	Result   *models.ProviderResult
	Attempts []Attempt
}

// Providers lists the names of every provider that was asked, in order.
func (o Outcome) Providers() []string {
	out := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		out = append(out, a.Provider)
	}
	return out
}

// Selector runs a fixed, ordered list of providers.
type Selector struct {
	providers []provider.Provider
	log       *logger.Logger
}

// New creates a selector. Provider order is the only tie-break.
func New(providers []provider.Provider, log *logger.Logger) *Selector {
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{providers: providers, log: log}
}

// Len returns the number of configured providers.
func (s *Selector) Len() int { return len(s.providers) }

// Select asks providers in order and stops at the first one returning items.
// Confidence never influences the choice.
func (s *Selector) Select(ctx context.Context, q provider.Query) Outcome {
	out := Outcome{State: Try}
	for _, p := range s.providers {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		res, err := p.Call(ctx, q)
		attempt := Attempt{Provider: p.Name(), Err: err, Duration: time.Since(start)}

		switch {
		case err != nil && errors.Is(err, provider.ErrUnavailable):
			attempt.Status = StatusUnavailable
		case err != nil:
			attempt.Status = StatusFailed
		case res == nil || len(res.Items) == 0:
			attempt.Status = StatusEmpty
		default:
			attempt.Status = StatusSelected
			attempt.Items = len(res.Items)
		}
		out.Attempts = append(out.Attempts, attempt)
		s.logAttempt(q, attempt)

		if attempt.Status == StatusSelected {
			out.State = Selected
			out.Result = res
			return out
		}
	}
	out.State = Exhausted
	return out
}

func (s *Selector) logAttempt(q provider.Query, a Attempt) {
	payload := map[string]interface{}{
		"provider":    a.Provider,
		"status":      string(a.Status),
		"section":     string(q.Section),
		"period":      string(q.Period),
		"item_type":   string(q.ItemType),
		"items":       a.Items,
		"duration_ms": a.Duration.Milliseconds(),
	}
	l := s.log.WithPayload(payload)
	if a.Err != nil {
		l.WithError(models.ErrorInfo{Message: a.Err.Error(), Type: models.ErrTypeProvider}).Warn("provider attempt did not yield items")
		return
	}
	l.Debug("provider attempt finished")
}
