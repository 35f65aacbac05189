// Package provider wraps external summarization backends behind a uniform
// call that either returns normalized items or signals unavailability.
package provider

import (
	"context"
	"errors"
	"fmt"

	"TechPulse/backend/go/internal/models"
)

// ErrUnavailable means the provider cannot serve this call: no credential,
// timeout, or any failure under the soft policy. Callers move on to the next provider.
var ErrUnavailable = errors.New("provider unavailable")

// Error is returned by providers running under the hard policy.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// unavailable wraps cause so that errors.Is(err, ErrUnavailable) holds while keeping the cause for logs.
func unavailable(name string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", name, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", name, ErrUnavailable, cause)
}

// Query is what the cascade asks every provider for.
type Query struct {
	Section  models.Section
	Period   models.Period
	ItemType models.ItemType
}

// Provider is one external summarization source.
type Provider interface {
	Name() string
	Call(ctx context.Context, q Query) (*models.ProviderResult, error)
}

// Func adapts a function to Provider. Handy for tests and fixed sources.
type Func struct {
	ProviderName string
	Fn           func(ctx context.Context, q Query) (*models.ProviderResult, error)
}

func (f Func) Name() string { return f.ProviderName }

func (f Func) Call(ctx context.Context, q Query) (*models.ProviderResult, error) {
	return f.Fn(ctx, q)
}
