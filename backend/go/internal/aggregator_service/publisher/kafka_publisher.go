package publisher

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TriggerPublisher sends refresh triggers to the trigger topic.
type TriggerPublisher struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
	logger *logger.Logger
}

// NewTriggerPublisher creates a publisher over an existing writer.
func NewTriggerPublisher(writer MessageWriter, topic string, log *logger.Logger) *TriggerPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &TriggerPublisher{writer: writer, topic: topic, now: time.Now, logger: log}
}

// MessageKey groups triggers for the same scope on one partition.
func MessageKey(t models.RefreshTrigger) string {
	parts := make([]string, 0, len(t.Sections)+len(t.Periods))
	for _, s := range t.Sections {
		parts = append(parts, string(s))
	}
	for _, p := range t.Periods {
		parts = append(parts, string(p))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ",")
}

// Publish sends a trigger message to the Kafka topic.
func (p *TriggerPublisher) Publish(ctx context.Context, trigger models.RefreshTrigger) error {
	if trigger.RequestedAt.IsZero() {
		trigger.RequestedAt = p.now().UTC()
	}
	msgBytes, err := json.Marshal(trigger)
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).Error("Failed to marshal refresh trigger")
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(MessageKey(trigger)),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: models.ErrTypeBroker}).
			WithPayload(map[string]interface{}{"topic": p.topic}).
			Error("Failed to write refresh trigger to Kafka")
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *TriggerPublisher) Close() error {
	return p.writer.Close()
}
