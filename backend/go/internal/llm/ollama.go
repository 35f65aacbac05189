package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"TechPulse/backend/go/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于本地 Ollama 服务的 LLM 客户端。
type Ollama struct {
	client *olla.Client
	model  string
}

// NewOllama 创建一个新的 Ollama 客户端。baseURL 为空时使用 "http://localhost:11434"。
func NewOllama(model, baseURL string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := &http.Client{Timeout: 120 * time.Second}
	return &Ollama{client: olla.NewClient(parsedURL, hc), model: model}, nil
}

// GenerateContent 以非流式方式调用 Generate 接口。
func (o *Ollama) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	stream := false
	genReq := &olla.GenerateRequest{
		Model:  o.model,
		Prompt: req.PromptText(),
		System: req.SystemInstruction,
		Stream: &stream,
	}
	if req.JSONOutput {
		genReq.Format = json.RawMessage(`"json"`)
	}

	var result *olla.GenerateResponse
	err := o.client.Generate(ctx, genReq, func(resp olla.GenerateResponse) error {
		result = &resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("ollama 未返回任何内容")
	}
	return models.TextResponse(result.Response, result.Model), nil
}
