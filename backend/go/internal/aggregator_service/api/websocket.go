package api

import (
	"context"
	"time"

	"TechPulse/backend/go/internal/connection"
	"TechPulse/backend/go/internal/models"

	"github.com/gin-gonic/gin"
)

const maxInboundMessage = 4 << 10

// WebSocketHandler upgrades the request, registers the live connection and
// acknowledges every inbound message until the client goes away.
func (a *API) WebSocketHandler(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to upgrade WebSocket connection")
		return
	}
	// The hijacked connection outlives the request context.
	ctx := context.WithoutCancel(c.Request.Context())

	live, err := a.connections.Connect(ctx, c.Query("sessionId"), conn)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).Error("Failed to register live connection")
		_ = conn.Close()
		return
	}
	id := live.ConnectionID
	defer func() {
		if err := a.connections.Disconnect(ctx, id); err != nil {
			a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).Warn("Failed to deregister live connection")
		}
	}()

	hub := a.connections.Hub()
	if err := hub.Push(ctx, id, connection.Message(models.MessageTypeConnected, live, a.now())); err != nil {
		return
	}

	conn.SetReadLimit(maxInboundMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		touched, err := a.connections.Touch(ctx, id)
		if err != nil {
			a.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeNotification}).Warn("Live connection no longer registered")
			return
		}
		pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = hub.Push(pushCtx, id, connection.Message(models.MessageTypeAck, touched, a.now()))
		cancel()
		if err != nil {
			return
		}
	}
}
