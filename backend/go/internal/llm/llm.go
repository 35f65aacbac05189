package llm

import (
	"context"
	"fmt"
	"time"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/internal/models"
	pkghttp "TechPulse/backend/go/pkg/http"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
}

// Closer 由持有长连接资源的客户端实现（例如 Gemini）。
type Closer interface {
	Close() error
}

// 各后端的默认服务地址。
const (
	PerplexityBaseURL  = "https://api.perplexity.ai"
	OllamaBaseURL      = "http://localhost:11434"
	HuggingFaceBaseURL = "https://api-inference.huggingface.co/models/"
)

// NewClient 是一个工厂函数，根据提供方配置和凭证创建对应的客户端。
// 对于 ollama，credential 即服务地址。
func NewClient(ctx context.Context, p config.ProviderConfig, credential string, breaker config.CircuitBreakerConfig) (LLM, error) {
	switch p.Kind {
	case "perplexity":
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = PerplexityBaseURL
		}
		return NewOpenAI(p.Model, credential, baseURL)
	case "openai":
		return NewOpenAI(p.Model, credential, p.BaseURL)
	case "gemini":
		return NewGemini(ctx, p.Model, credential)
	case "ollama":
		return NewOllama(p.Model, credential)
	case "huggingface":
		client, err := pkghttp.NewClient(p.Name, breaker, timeoutOr(p.TimeoutDuration(), 30*time.Second))
		if err != nil {
			return nil, fmt.Errorf("创建 Hugging Face HTTP 客户端失败: %w", err)
		}
		return NewHuggingFace(p.Model, credential, p.BaseURL, client)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Kind)
	}
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
