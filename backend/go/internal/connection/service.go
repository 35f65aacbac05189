package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a connection id is not registered.
var ErrNotFound = errors.New("connection not registered")

// Service ties the registry and the local hub together for the websocket
// endpoint: connect, touch on every message, disconnect.
type Service struct {
	registry Registry
	hub      *Hub
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a connection Service. ttl bounds how long a silent
// connection stays registered.
func NewService(registry Registry, hub *Hub, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		hub:      hub,
		ttl:      ttl,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the underlying registry.
func (s *Service) Registry() Registry { return s.registry }

// Hub exposes the local socket hub.
func (s *Service) Hub() *Hub { return s.hub }

// Connect registers a new connection and attaches its socket. An empty
// sessionID is replaced by a generated one.
func (s *Service) Connect(ctx context.Context, sessionID string, socket Socket) (*models.LiveConnection, error) {
	now := s.now().UTC()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	conn := models.LiveConnection{
		ConnectionID: uuid.NewString(),
		SessionID:    sessionID,
		ConnectedAt:  now,
	}
	conn.Touch(now, s.ttl)

	if err := s.registry.Put(ctx, conn); err != nil {
		return nil, err
	}
	s.hub.Attach(conn.ConnectionID, socket)
	s.log.WithPayload(map[string]interface{}{
		"connectionId": conn.ConnectionID,
		"sessionId":    conn.SessionID,
	}).Info("Live connection registered")
	return &conn, nil
}

// Touch refreshes lastSeenAt and pushes the expiry forward.
func (s *Service) Touch(ctx context.Context, id string) (*models.LiveConnection, error) {
	conn, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	conn.Touch(s.now().UTC(), s.ttl)
	ok, err := s.registry.Refresh(ctx, *conn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return conn, nil
}

// Disconnect deregisters the connection and closes its socket.
func (s *Service) Disconnect(ctx context.Context, id string) error {
	s.hub.Detach(id)
	if err := s.registry.Remove(ctx, id); err != nil {
		return err
	}
	s.log.WithPayload(map[string]interface{}{"connectionId": id}).Info("Live connection removed")
	return nil
}

// Message encodes a connection-level message of the given type.
func Message(msgType string, conn *models.LiveConnection, now time.Time) []byte {
	data, _ := json.Marshal(models.ConnectionMessage{
		Type:         msgType,
		ConnectionID: conn.ConnectionID,
		SessionID:    conn.SessionID,
		Timestamp:    now.UTC(),
	})
	return data
}
