package consumer

import (
	"context"
	"errors"
	"time"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const fetchRetryDelay = time.Second

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler runs one decoded refresh trigger.
type Handler func(ctx context.Context, trigger models.RefreshTrigger) error

// TriggerConsumer consumes refresh triggers from Kafka. A message is
// committed after its sweep ran, whatever the sweep outcome.
type TriggerConsumer struct {
	reader MessageReader
	logger *logger.Logger
	done   chan struct{}
}

// NewTriggerConsumer creates a consumer over an existing reader.
func NewTriggerConsumer(reader MessageReader, log *logger.Logger) *TriggerConsumer {
	if log == nil {
		log = logger.Nop()
	}
	return &TriggerConsumer{reader: reader, logger: log, done: make(chan struct{})}
}

// Start begins consuming messages in the background.
func (c *TriggerConsumer) Start(ctx context.Context, handler Handler) {
	go func() {
		defer close(c.done)
		c.Run(ctx, handler)
	}()
}

// Done is closed when a loop started by Start returns.
func (c *TriggerConsumer) Done() <-chan struct{} {
	return c.done
}

// Run consumes until ctx is cancelled.
func (c *TriggerConsumer) Run(ctx context.Context, handler Handler) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("Stopping Kafka trigger consumer...")
				return
			}
			c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).Error("Error fetching message from Kafka")
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		trigger := models.DecodeRefreshTrigger(msg.Value)
		trigger.Source = models.TriggerBroker
		if err := handler(ctx, trigger); err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).WithPayload(map[string]interface{}{
				"topic":     msg.Topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("Error handling refresh trigger")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).Error("Failed to commit Kafka message")
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *TriggerConsumer) Close() error {
	return c.reader.Close()
}
