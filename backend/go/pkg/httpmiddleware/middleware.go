package httpmiddleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/circuitbreaker"
	"TechPulse/backend/go/pkg/logger"
	"TechPulse/backend/go/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// RateLimit rejects requests with 429 once the shared limiter is exhausted.
func RateLimit(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

// RateLimitPerClient applies a separate limiter to every client IP.
func RateLimitPerClient(limiters *ratelimiter.Keyed) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiters.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

// CircuitBreak trips when handlers keep answering with 5xx and then sheds load with 503.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := breaker.Execute(func() (any, error) {
			c.Next()
			if status := c.Writer.Status(); status >= http.StatusInternalServerError {
				return nil, fmt.Errorf("server error: status code %d", status)
			}
			return nil, nil
		})
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service Unavailable: Circuit Breaker is open"})
		}
	}
}

// RequestLog writes one structured line per request.
func RequestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		info := models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Status:     c.Writer.Status(),
			LatencyMs:  time.Since(start).Milliseconds(),
		}
		l := log.WithRequest(info)
		if len(c.Errors) > 0 {
			l.WithError(models.ErrorInfo{Message: c.Errors.String(), StatusCode: info.Status}).Warn("request completed with errors")
			return
		}
		l.Debug("request completed")
	}
}
