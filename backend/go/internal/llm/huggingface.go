package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"TechPulse/backend/go/internal/models"
)

// Doer 是执行 HTTP 请求的最小接口，由 pkg/http.Client 实现。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HuggingFace 是一个用于 Hugging Face Inference API 的 LLM 客户端。
type HuggingFace struct {
	client  Doer
	model   string
	apiKey  string
	baseURL string
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。
// baseURL 为空时默认为 "https://api-inference.huggingface.co/models/"。
func NewHuggingFace(model, apiKey, baseURL string, client Doer) (*HuggingFace, error) {
	if baseURL == "" {
		baseURL = HuggingFaceBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFace{client: client, model: model, apiKey: apiKey, baseURL: baseURL}, nil
}

type hfRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// GenerateContent 使用 Hugging Face Inference API 生成内容。
func (h *HuggingFace) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	inputs := req.PromptText()
	if req.SystemInstruction != "" {
		inputs = req.SystemInstruction + "\n\n" + inputs
	}
	body, err := json.Marshal(hfRequest{
		Inputs:     inputs,
		Parameters: map[string]any{"return_full_text": false, "max_new_tokens": 2048},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hugging face returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var generations []hfGeneration
	if err := json.NewDecoder(resp.Body).Decode(&generations); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(generations) == 0 {
		return nil, fmt.Errorf("no generated text returned")
	}
	return models.TextResponse(generations[0].GeneratedText, h.model), nil
}
