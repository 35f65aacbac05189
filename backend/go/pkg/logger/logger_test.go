package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"TechPulse/backend/go/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(logrus.DebugLevel, &buf)
	t.Cleanup(func() { InitWithOutput(logrus.InfoLevel, &bytes.Buffer{}) })

	base := New("aggregator", "", "")
	base.WithTrace("sweep-1").
		WithError(models.ErrorInfo{Message: "timeout", Type: models.ErrTypeProvider}).
		WithPayload(map[string]interface{}{"key": "ai#daily"}).
		Warn("provider failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "provider failed", line["message"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "aggregator", line["service_name"])
	assert.Equal(t, "sweep-1", line["trace_id"])
	assert.Contains(t, line, "timestamp")
	assert.Equal(t, "ai#daily", line["payload"].(map[string]interface{})["key"])
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(logrus.InfoLevel, &buf)
	t.Cleanup(func() { InitWithOutput(logrus.InfoLevel, &bytes.Buffer{}) })

	base := New("aggregator", "", "")
	_ = base.WithPayload(map[string]interface{}{"leak": true})
	base.Info("clean")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "payload")
}
