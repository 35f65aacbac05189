package llm

import (
	"context"
	"fmt"

	"TechPulse/backend/go/internal/models"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI 兼容 Chat Completions API 的客户端。
// Perplexity 通过自定义 baseURL 复用该实现。
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI 创建一个新的 OpenAI 客户端。baseURL 为空时使用官方地址。
func NewOpenAI(model, apiKey, baseURL string) (*OpenAI, error) {
	if model == "" {
		return nil, fmt.Errorf("openai 客户端需要指定模型名称")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// GenerateContent 使用 Chat Completions API 生成内容。
func (o *OpenAI) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.toOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	return toGenerateContentResponse(&resp), nil
}

func (o *OpenAI) toOpenAIRequest(req *models.GenerateContentRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	for _, content := range req.Content {
		role := openai.ChatMessageRoleUser
		if content.Role == models.SpeakerModel {
			role = openai.ChatMessageRoleAssistant
		}
		for _, part := range content.Parts {
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: part.Text})
		}
	}
	return openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
}

func toGenerateContentResponse(resp *openai.ChatCompletionResponse) *models.GenerateContentResponse {
	out := &models.GenerateContentResponse{
		ResponseID:   resp.ID,
		ModelVersion: resp.Model,
	}
	for _, choice := range resp.Choices {
		out.Content = append(out.Content, models.Content{
			Role:  models.SpeakerModel,
			Parts: []*models.Part{{Text: choice.Message.Content}},
		})
	}
	return out
}
