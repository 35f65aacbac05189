package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TechPulse/backend/go/internal/aggregator_service/canonical"
	"TechPulse/backend/go/internal/aggregator_service/cascade"
	"TechPulse/backend/go/internal/aggregator_service/store"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/internal/provider"
	"TechPulse/backend/go/pkg/logger"
)

// ErrCacheWrite is returned when a generation could not be persisted. It is
// the only pipeline failure surfaced to callers.
var ErrCacheWrite = errors.New("cache write failed")

// PlaceholderProvider is recorded as the provider of exhausted generations.
const PlaceholderProvider = "placeholder"

// Mode selects whether a request may be served from the cache.
type Mode string

const (
	// ModeAPI serves a fresh cached slot when one exists.
	ModeAPI Mode = "api"
	// ModeRefresh always runs the pipeline.
	ModeRefresh Mode = "refresh"
)

// Request is a normalized aggregation request. Build it with NormalizeRequest.
type Request struct {
	Section  models.Section
	Period   models.Period
	ItemType models.ItemType
	Mode     Mode
}

// Key returns the cache key addressed by the request.
func (r Request) Key() models.CacheKey {
	return models.NewCacheKey(r.Section, r.Period)
}

// NormalizeRequest maps raw request values onto the supported enums. Unknown
// or missing values fall back to the defaults instead of failing.
func NormalizeRequest(section, period string, itemType models.ItemType, mode string) Request {
	req := Request{Section: models.DefaultSection, Period: models.DefaultPeriod, ItemType: itemType, Mode: ModeAPI}
	if s, ok := models.ParseSection(section); ok {
		req.Section = s
	}
	if p, ok := models.ParsePeriod(period); ok {
		req.Period = p
	}
	if req.ItemType != models.ItemTypePatents {
		req.ItemType = models.ItemTypeNews
	}
	if Mode(strings.ToLower(strings.TrimSpace(mode))) == ModeRefresh {
		req.Mode = ModeRefresh
	}
	return req
}

// Archiver receives a copy of every written slot. Failures are logged only.
type Archiver interface {
	Archive(ctx context.Context, key models.CacheKey, itemType models.ItemType, slot *models.Slot) error
}

// Result is what one pipeline run (or cache hit) produced.
type Result struct {
	Request   Request
	Slot      *models.Slot
	State     cascade.State
	Attempts  []cascade.Attempt
	FromCache bool
}

// Providers lists the providers asked during the run.
func (r *Result) Providers() []string {
	out := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		out = append(out, a.Provider)
	}
	return out
}

// AggregatorService runs the cascade → canonicalize → write pipeline and
// serves cached content.
type AggregatorService struct {
	selector *cascade.Selector
	store    store.ContentStore
	archiver Archiver
	now      func() time.Time
	logger   *logger.Logger
}

// Option customizes an AggregatorService.
type Option func(*AggregatorService)

// WithArchiver enables snapshot archiving of written slots.
func WithArchiver(a Archiver) Option {
	return func(s *AggregatorService) { s.archiver = a }
}

// WithClock overrides the time source used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AggregatorService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *AggregatorService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewAggregatorService creates a new AggregatorService.
func NewAggregatorService(selector *cascade.Selector, contentStore store.ContentStore, opts ...Option) *AggregatorService {
	s := &AggregatorService{
		selector: selector,
		store:    contentStore,
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregate is the external entry point. In api mode a fresh cached slot is
// returned as is; otherwise the pipeline runs and its slot is returned.
func (s *AggregatorService) Aggregate(ctx context.Context, req Request) (*Result, error) {
	if req.Mode != ModeRefresh {
		record, err := s.store.Read(ctx, req.Key())
		if err != nil {
			s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).
				WithPayload(map[string]interface{}{"key": string(req.Key())}).
				Warn("Cache read failed, running pipeline")
		} else if slot := record.Slot(req.ItemType); slot.Fresh(s.now()) {
			return &Result{Request: req, Slot: slot, State: cascade.Selected, FromCache: true}, nil
		}
	}
	return s.run(ctx, req)
}

// RefreshPair is the orchestrator entry point: news then patents for one key,
// strictly in that order. A failed write stops the pair.
func (s *AggregatorService) RefreshPair(ctx context.Context, key models.CacheKey) ([]*Result, error) {
	section, period := key.Split()
	results := make([]*Result, 0, 2)
	for _, itemType := range []models.ItemType{models.ItemTypeNews, models.ItemTypePatents} {
		res, err := s.run(ctx, Request{Section: section, Period: period, ItemType: itemType, Mode: ModeRefresh})
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// run is the single pipeline shared by both entry points.
func (s *AggregatorService) run(ctx context.Context, req Request) (*Result, error) {
	outcome := s.selector.Select(ctx, provider.Query{Section: req.Section, Period: req.Period, ItemType: req.ItemType})
	now := s.now().UTC()

	var gen models.Generation
	if outcome.State == cascade.Selected {
		items := canonical.Canonicalize(outcome.Result, req.Section, req.Period, now)
		gen = models.Generation{
			Items:               items,
			Provider:            outcome.Result.Provider,
			VerificationSummary: canonical.VerifiedSummary(outcome.Result.Provider, outcome.Result.Confidence, len(items)),
		}
	} else {
		gen = models.Generation{
			Items:               canonical.Placeholders(req.Section, req.Period, req.ItemType, now),
			Provider:            PlaceholderProvider,
			VerificationSummary: canonical.UnavailableSummary(len(outcome.Attempts)),
		}
		s.logger.WithPayload(map[string]interface{}{
			"key":       string(req.Key()),
			"item_type": string(req.ItemType),
			"attempted": len(outcome.Attempts),
		}).Warn("Cascade exhausted, storing placeholder content")
	}

	result := &Result{Request: req, State: outcome.State, Attempts: outcome.Attempts}
	slot, err := s.store.Upsert(ctx, req.Key(), req.ItemType, gen)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).
			WithPayload(map[string]interface{}{"key": string(req.Key()), "item_type": string(req.ItemType)}).
			Error("Failed to write generation")
		return result, fmt.Errorf("%w: %s/%s: %v", ErrCacheWrite, req.Key(), req.ItemType, err)
	}
	result.Slot = slot

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, req.Key(), req.ItemType, slot); err != nil {
			s.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).
				WithPayload(map[string]interface{}{"key": string(req.Key())}).
				Warn("Failed to archive snapshot")
		}
	}
	return result, nil
}

// DeepDive resolves an item in the cached news for (section, period) and
// expands it with related items. Unknown ids yield a synthesized placeholder;
// an empty id selects the first cached item.
func (s *AggregatorService) DeepDive(ctx context.Context, section models.Section, period models.Period, itemID string, depth int) (models.ContentItem, error) {
	record, err := s.store.Read(ctx, models.NewCacheKey(section, period))
	if err != nil {
		return models.ContentItem{}, fmt.Errorf("failed to read %s: %w", models.NewCacheKey(section, period), err)
	}

	var pool []models.ContentItem
	if slot := record.Slot(models.ItemTypeNews); slot != nil {
		pool = slot.Items
	}
	if itemID == "" {
		if len(pool) > 0 {
			itemID = pool[0].ID
		} else {
			itemID = canonical.PlaceholderID(section, period)
		}
	}

	target, ok := canonical.Find(pool, itemID)
	if !ok {
		target = canonical.PlaceholderItem(section, period, itemID, s.now().UTC())
	}
	return canonical.Expand(target, pool, depth), nil
}
