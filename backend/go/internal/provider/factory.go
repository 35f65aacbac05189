package provider

import (
	"context"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/llm"
	"TechPulse/backend/go/pkg/circuitbreaker"
	"TechPulse/backend/go/pkg/logger"
)

// FromConfig builds adapters for every enabled provider, preserving config order.
func FromConfig(cfg *config.AppConfig, creds *config.Credentials, log *logger.Logger) []Provider {
	if log == nil {
		log = logger.Nop()
	}
	breakerCfg := cfg.Middleware.CircuitBreaker
	factory := func(ctx context.Context, p config.ProviderConfig, credential string) (llm.LLM, error) {
		return llm.NewClient(ctx, p, credential, breakerCfg)
	}

	var out []Provider
	for _, p := range cfg.Providers {
		if !p.IsEnabled() {
			continue
		}
		opts := []AdapterOption{WithLogger(log)}
		if p.Policy == string(PolicyHard) && breakerCfg.FailureThreshold > 0 {
			opts = append(opts, WithBreaker(circuitbreaker.NewWithSettings(circuitbreaker.Settings{
				Name:             p.Name,
				FailureThreshold: breakerCfg.FailureThreshold,
				SuccessThreshold: breakerCfg.SuccessThreshold,
				Timeout:          config.ParseDuration(breakerCfg.Timeout, 0),
				OnStateChange: func(name string, from, to circuitbreaker.State) {
					log.WithPayload(map[string]interface{}{
						"provider": name, "from": from.String(), "to": to.String(),
					}).Warn("provider circuit state changed")
				},
			})))
		}
		out = append(out, NewAdapter(p, creds, factory, opts...))
	}
	return out
}
