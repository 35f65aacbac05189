package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/llm"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/circuitbreaker"
	"TechPulse/backend/go/pkg/logger"
)

// Policy decides how adapter failures are reported.
type Policy string

const (
	// PolicySoft turns every failure into ErrUnavailable.
	PolicySoft Policy = "soft"
	// PolicyHard returns *Error and counts failures against a circuit breaker.
	PolicyHard Policy = "hard"
)

// ClientFactory builds an LLM client for a credential.
type ClientFactory func(ctx context.Context, cfg config.ProviderConfig, credential string) (llm.LLM, error)

// Adapter turns an LLM backend into a Provider.
type Adapter struct {
	cfg       config.ProviderConfig
	policy    Policy
	timeout   time.Duration
	creds     *config.Credentials
	newClient ClientFactory
	breaker   circuitbreaker.CircuitBreaker
	log       *logger.Logger

	mu        sync.Mutex
	client    llm.LLM
	clientKey string
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithBreaker replaces the circuit breaker used under the hard policy.
func WithBreaker(cb circuitbreaker.CircuitBreaker) AdapterOption {
	return func(a *Adapter) { a.breaker = cb }
}

// WithLogger sets the adapter logger.
func WithLogger(l *logger.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAdapter creates an adapter. The SDK client is built on first use and
// rebuilt only when the credential changes.
func NewAdapter(cfg config.ProviderConfig, creds *config.Credentials, factory ClientFactory, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		cfg:       cfg,
		policy:    Policy(cfg.Policy),
		timeout:   cfg.TimeoutDuration(),
		creds:     creds,
		newClient: factory,
		log:       logger.Nop(),
	}
	if a.policy != PolicyHard {
		a.policy = PolicySoft
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.policy == PolicyHard && a.breaker == nil {
		a.breaker = circuitbreaker.NewWithSettings(circuitbreaker.Settings{
			Name:             cfg.Name,
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			},
		})
	}
	return a
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Call asks the backend for items matching q.
func (a *Adapter) Call(ctx context.Context, q Query) (*models.ProviderResult, error) {
	credential, ok := a.creds.Get(a.cfg.Name)
	if !ok {
		return nil, unavailable(a.cfg.Name, errors.New("missing credential"))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.policy == PolicySoft {
		res, err := a.call(ctx, credential, q)
		if err != nil {
			return nil, unavailable(a.cfg.Name, err)
		}
		return res, nil
	}

	out, err := a.breaker.Execute(func() (any, error) {
		return a.call(ctx, credential, q)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, unavailable(a.cfg.Name, err)
		}
		return nil, &Error{Provider: a.cfg.Name, Err: err}
	}
	return out.(*models.ProviderResult), nil
}

func (a *Adapter) call(ctx context.Context, credential string, q Query) (*models.ProviderResult, error) {
	client, err := a.clientFor(ctx, credential)
	if err != nil {
		return nil, err
	}
	resp, err := client.GenerateContent(ctx, q.Request())
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(resp.Text())
	if err != nil {
		return nil, err
	}
	confidence := a.cfg.Confidence
	if parsed.HasConfidence {
		confidence = parsed.Confidence
	}
	return &models.ProviderResult{
		Provider:   a.cfg.Name,
		Confidence: normalizeConfidence(confidence),
		Items:      parsed.Items,
	}, nil
}

func (a *Adapter) clientFor(ctx context.Context, credential string) (llm.LLM, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil && a.clientKey == credential {
		return a.client, nil
	}
	client, err := a.newClient(ctx, a.cfg, credential)
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", a.cfg.Kind, err)
	}
	if old, ok := a.client.(llm.Closer); ok {
		_ = old.Close()
	}
	a.client = client
	a.clientKey = credential
	a.log.WithPayload(map[string]interface{}{"provider": a.cfg.Name, "kind": a.cfg.Kind}).Debug("provider client initialized")
	return client, nil
}

// Close releases the cached SDK client, if any.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.client.(llm.Closer); ok {
		a.client = nil
		return c.Close()
	}
	a.client = nil
	return nil
}
