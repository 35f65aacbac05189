package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/pkg/circuitbreaker"
	"TechPulse/backend/go/pkg/httpmiddleware"
	"TechPulse/backend/go/pkg/logger"
	"TechPulse/backend/go/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// Server wraps a gin engine in an http.Server and installs the configured
// rate limiting and circuit breaking middleware.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger sets the logger used for startup and request logs.
func WithLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a Server from the middleware section of cfg.
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	engine := gin.New()
	srv := &Server{
		httpServer: &http.Server{
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = cfg.Server.Address
	}
	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}

	engine.Use(gin.Recovery(), httpmiddleware.RequestLog(srv.log))

	if cfg.Middleware.RateLimiter.Enabled {
		factory, err := rateLimiterFactory(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.log.WithPayload(map[string]interface{}{"algorithm": cfg.Middleware.RateLimiter.Algorithm}).Info("Enabling Rate Limiter middleware")
		engine.Use(httpmiddleware.RateLimitPerClient(ratelimiter.NewKeyed(factory, 10*time.Minute, nil)))
	}

	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker("http-server", cfg.Middleware.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.log.Info("Enabling Circuit Breaker middleware")
		engine.Use(httpmiddleware.CircuitBreak(breaker))
	}

	return srv, nil
}

// Engine exposes the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handler returns the root handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log.Info("Starting HTTP server on " + s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// rateLimiterFactory builds a constructor for per-client limiters.
func rateLimiterFactory(cfg config.RateLimiterConfig) (func() ratelimiter.RateLimiter, error) {
	switch cfg.Algorithm {
	case "", "tokenBucket":
		conf := cfg.TokenBucket
		if conf.Rate <= 0 || conf.Capacity <= 0 {
			return nil, fmt.Errorf("tokenBucket requires positive rate and capacity")
		}
		return func() ratelimiter.RateLimiter {
			return ratelimiter.NewTokenBucket(conf.Rate, conf.Capacity)
		}, nil
	case "fixedWindow":
		conf := cfg.FixedWindow
		window, err := time.ParseDuration(conf.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid fixedWindow duration: %w", err)
		}
		return func() ratelimiter.RateLimiter {
			return ratelimiter.NewFixedWindowCounter(conf.Limit, window)
		}, nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %s", cfg.Algorithm)
	}
}

// createCircuitBreaker initializes a circuit breaker based on the configuration.
func createCircuitBreaker(name string, cfg config.CircuitBreakerConfig) (circuitbreaker.CircuitBreaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return circuitbreaker.NewWithSettings(circuitbreaker.Settings{
		Name:             name,
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		Timeout:          timeout,
	}), nil
}
