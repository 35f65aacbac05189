package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/llm"
	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply string
	err   error
	delay time.Duration
	calls *int32
}

func (f *fakeLLM) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	if f.calls != nil {
		atomic.AddInt32(f.calls, 1)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return models.TextResponse(f.reply, "fake"), nil
}

func factoryFor(client llm.LLM, builds *int32) ClientFactory {
	return func(ctx context.Context, cfg config.ProviderConfig, credential string) (llm.LLM, error) {
		if builds != nil {
			atomic.AddInt32(builds, 1)
		}
		return client, nil
	}
}

func providerCfg(policy string) config.ProviderConfig {
	return config.ProviderConfig{Name: "p1", Kind: "openai", Model: "m", Policy: policy, Timeout: "1s", Confidence: 0.6}
}

var query = Query{Section: models.SectionAI, Period: models.PeriodDaily, ItemType: models.ItemTypeNews}

func TestAdapterMissingCredentialSkipsNetwork(t *testing.T) {
	var builds int32
	a := NewAdapter(providerCfg("soft"), config.StaticCredentials(nil), factoryFor(&fakeLLM{}, &builds))

	_, err := a.Call(context.Background(), query)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Zero(t, atomic.LoadInt32(&builds))
}

func TestAdapterSuccessUsesPayloadConfidence(t *testing.T) {
	fake := &fakeLLM{reply: `{"confidence":0.9,"items":[{"title":"a"},{"title":"b"}]}`}
	a := NewAdapter(providerCfg("soft"), config.StaticCredentials(map[string]string{"p1": "k"}), factoryFor(fake, nil))

	res, err := a.Call(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Provider)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Len(t, res.Items, 2)
}

func TestAdapterFallsBackToConfiguredConfidence(t *testing.T) {
	fake := &fakeLLM{reply: `[{"title":"a"}]`}
	a := NewAdapter(providerCfg("soft"), config.StaticCredentials(map[string]string{"p1": "k"}), factoryFor(fake, nil))

	res, err := a.Call(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 0.6, res.Confidence)
}

func TestAdapterSoftPolicyMasksFailures(t *testing.T) {
	for name, fake := range map[string]*fakeLLM{
		"backend error": {err: errors.New("500")},
		"malformed":     {reply: "I cannot help with that"},
	} {
		t.Run(name, func(t *testing.T) {
			a := NewAdapter(providerCfg("soft"), config.StaticCredentials(map[string]string{"p1": "k"}), factoryFor(fake, nil))
			_, err := a.Call(context.Background(), query)
			assert.ErrorIs(t, err, ErrUnavailable)
			var perr *Error
			assert.False(t, errors.As(err, &perr))
		})
	}
}

func TestAdapterTimeoutIsUnavailable(t *testing.T) {
	cfg := providerCfg("hard")
	cfg.Timeout = "20ms"
	fake := &fakeLLM{reply: `[]`, delay: time.Second}
	a := NewAdapter(cfg, config.StaticCredentials(map[string]string{"p1": "k"}), factoryFor(fake, nil))

	start := time.Now()
	_, err := a.Call(context.Background(), query)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAdapterHardPolicyTripsBreaker(t *testing.T) {
	var calls int32
	fake := &fakeLLM{err: errors.New("bad gateway"), calls: &calls}
	breaker := circuitbreaker.New(2, 1, time.Hour)
	a := NewAdapter(providerCfg("hard"), config.StaticCredentials(map[string]string{"p1": "k"}), factoryFor(fake, nil), WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := a.Call(context.Background(), query)
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "p1", perr.Provider)
	}

	_, err := a.Call(context.Background(), query)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestAdapterRebuildsClientAfterCredentialChange(t *testing.T) {
	var builds int32
	key := "k1"
	creds := config.NewCredentials(func() (map[string]string, error) {
		return map[string]string{"p1": key}, nil
	})
	a := NewAdapter(providerCfg("soft"), creds, factoryFor(&fakeLLM{reply: `[]`}, &builds))

	_, _ = a.Call(context.Background(), query)
	_, _ = a.Call(context.Background(), query)
	assert.EqualValues(t, 1, atomic.LoadInt32(&builds))

	key = "k2"
	_, _ = a.Call(context.Background(), query)
	assert.EqualValues(t, 1, atomic.LoadInt32(&builds), "credentials are cached until invalidated")

	creds.Invalidate()
	_, _ = a.Call(context.Background(), query)
	assert.EqualValues(t, 2, atomic.LoadInt32(&builds))
}

func TestFromConfigKeepsOrderAndSkipsDisabled(t *testing.T) {
	off := false
	cfg := &config.AppConfig{Providers: []config.ProviderConfig{
		{Name: "a", Kind: "perplexity", Policy: "hard", Timeout: "1s"},
		{Name: "b", Kind: "ollama", Policy: "soft", Timeout: "1s", Enabled: &off},
		{Name: "c", Kind: "gemini", Policy: "soft", Timeout: "1s"},
	}}
	ps := FromConfig(cfg, config.StaticCredentials(nil), nil)
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].Name())
	assert.Equal(t, "c", ps[1].Name())
}

func TestQueryPromptMentionsTopicAndWindow(t *testing.T) {
	p := Query{Section: models.SectionQuantum, Period: models.PeriodWeekly, ItemType: models.ItemTypePatents}.Prompt()
	assert.Contains(t, p, "Quantum Computing")
	assert.Contains(t, p, "the past week")
	assert.Contains(t, p, "patents")
}
