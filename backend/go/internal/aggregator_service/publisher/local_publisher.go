package publisher

import (
	"context"

	"TechPulse/backend/go/internal/models"
)

// Triggerer starts a sweep without waiting for it.
type Triggerer interface {
	Trigger(trigger models.RefreshTrigger)
}

// LocalPublisher runs triggers in process when no broker is configured.
type LocalPublisher struct {
	target Triggerer
}

// NewLocalPublisher creates a LocalPublisher.
func NewLocalPublisher(target Triggerer) *LocalPublisher {
	return &LocalPublisher{target: target}
}

func (l *LocalPublisher) Publish(ctx context.Context, trigger models.RefreshTrigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.target.Trigger(trigger)
	return nil
}

func (l *LocalPublisher) Close() error { return nil }
