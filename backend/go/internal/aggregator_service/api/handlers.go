package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"TechPulse/backend/go/internal/aggregator_service/canonical"
	"TechPulse/backend/go/internal/aggregator_service/history"
	"TechPulse/backend/go/internal/aggregator_service/service"
	"TechPulse/backend/go/internal/connection"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxRefreshBody = 64 << 10

// Aggregator is the service surface the handlers call.
type Aggregator interface {
	Aggregate(ctx context.Context, req service.Request) (*service.Result, error)
	DeepDive(ctx context.Context, section models.Section, period models.Period, itemID string, depth int) (models.ContentItem, error)
}

// TriggerPublisher hands refresh triggers to the orchestrator, directly or
// through the broker.
type TriggerPublisher interface {
	Publish(ctx context.Context, trigger models.RefreshTrigger) error
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// API provides handlers for the aggregation service.
type API struct {
	aggregator  Aggregator
	publisher   TriggerPublisher
	history     history.Recorder
	connections *connection.Service
	checks      map[string]HealthCheck
	logger      *logger.Logger
	upgrader    websocket.Upgrader
	now         func() time.Time
}

// Option customizes the API.
type Option func(*API)

// WithHistory enables GET /api/v1/sweeps.
func WithHistory(r history.Recorder) Option {
	return func(a *API) { a.history = r }
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(a *API) { a.checks[name] = check }
}

// NewAPI creates a new API handler.
func NewAPI(aggregator Aggregator, publisher TriggerPublisher, connections *connection.Service, log *logger.Logger, opts ...Option) *API {
	if log == nil {
		log = logger.Nop()
	}
	a := &API{
		aggregator:  aggregator,
		publisher:   publisher,
		connections: connections,
		checks:      make(map[string]HealthCheck),
		logger:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type newsResponse struct {
	Section             models.Section       `json:"section"`
	TimePeriod          models.Period        `json:"timePeriod"`
	Items               []models.ContentItem `json:"items"`
	Provider            string               `json:"provider"`
	VerificationSummary string               `json:"verificationSummary"`
	GeneratedAt         time.Time            `json:"generatedAt"`
	ExpiresAt           time.Time            `json:"expiresAt"`
}

type patentsResponse struct {
	Section             models.Section      `json:"section"`
	TimePeriod          models.Period       `json:"timePeriod"`
	Patents             []models.PatentItem `json:"patents"`
	Provider            string              `json:"provider"`
	VerificationSummary string              `json:"verificationSummary"`
	GeneratedAt         time.Time           `json:"generatedAt"`
	ExpiresAt           time.Time           `json:"expiresAt"`
}

func (a *API) aggregate(c *gin.Context, itemType models.ItemType) (*service.Result, bool) {
	req := service.NormalizeRequest(c.Query("section"), c.Query("timePeriod"), itemType, c.Query("mode"))
	res, err := a.aggregator.Aggregate(c.Request.Context(), req)
	if err != nil || res == nil || res.Slot == nil {
		// The service layer already logged the detailed error
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate content"})
		return nil, false
	}
	return res, true
}

// GetNewsHandler serves the news slot for a section and period.
func (a *API) GetNewsHandler(c *gin.Context) {
	res, ok := a.aggregate(c, models.ItemTypeNews)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newsResponse{
		Section:             res.Request.Section,
		TimePeriod:          res.Request.Period,
		Items:               res.Slot.Items,
		Provider:            res.Slot.Provider,
		VerificationSummary: res.Slot.VerificationSummary,
		GeneratedAt:         res.Slot.GeneratedAt,
		ExpiresAt:           res.Slot.ExpiresAt,
	})
}

// GetPatentsHandler serves the patents slot for a section and period.
func (a *API) GetPatentsHandler(c *gin.Context) {
	res, ok := a.aggregate(c, models.ItemTypePatents)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patentsResponse{
		Section:             res.Request.Section,
		TimePeriod:          res.Request.Period,
		Patents:             models.PatentsOf(res.Slot.Items),
		Provider:            res.Slot.Provider,
		VerificationSummary: res.Slot.VerificationSummary,
		GeneratedAt:         res.Slot.GeneratedAt,
		ExpiresAt:           res.Slot.ExpiresAt,
	})
}

// DeepDiveHandler expands one cached item with related items.
func (a *API) DeepDiveHandler(c *gin.Context) {
	req := service.NormalizeRequest(c.Param("section"), c.Param("period"), models.ItemTypeNews, "")
	depth := canonical.ParseDepth(c.Query("depth"))

	item, err := a.aggregator.DeepDive(c.Request.Context(), req.Section, req.Period, c.Param("itemId"), depth)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).Error("Deep dive failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load item"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// RefreshHandler accepts a refresh trigger. A malformed body refreshes everything.
func (a *API) RefreshHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRefreshBody))
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeValidation}).Warn("Unreadable refresh body, using defaults")
		body = nil
	}
	trigger := models.DecodeRefreshTrigger(body)
	trigger.Source = models.TriggerHTTP
	trigger.RequestedAt = a.now().UTC()

	if err := a.publisher.Publish(c.Request.Context(), trigger); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).Error("Failed to publish refresh trigger")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule refresh"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "pairs": len(trigger.Pairs())})
}

// GetSweepsHandler lists recent sweep reports.
func (a *API) GetSweepsHandler(c *gin.Context) {
	if a.history == nil {
		c.JSON(http.StatusOK, gin.H{"sweeps": []models.SweepReport{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(history.DefaultLimit)))
	reports, err := a.history.Recent(c.Request.Context(), limit)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeStore}).Error("Failed to list sweeps")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sweeps"})
		return
	}
	if reports == nil {
		reports = []models.SweepReport{}
	}
	c.JSON(http.StatusOK, gin.H{"sweeps": reports})
}

// HealthHandler runs the registered dependency checks.
func (a *API) HealthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}
