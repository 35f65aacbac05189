package llm

import (
	"context"
	"fmt"
	"strings"

	"TechPulse/backend/go/internal/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次请求都会从 client 派生一个新的 GenerativeModel，避免在并发请求之间共享可变配置。
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini 创建一个新的 Gemini 客户端。
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("无法创建 Gemini 客户端: %w", err)
	}
	return &Gemini{client: client, modelName: model}, nil
}

// GenerateContent 向 Gemini API 发送单轮请求并返回响应。
func (g *Gemini) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	model := g.client.GenerativeModel(g.modelName)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}
	if req.JSONOutput {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, toGenaiParts(req.Content)...)
	if err != nil {
		return nil, fmt.Errorf("gemini 生成内容失败: %w", err)
	}
	return fromGenaiResponse(resp, g.modelName), nil
}

// Close 释放底层 gRPC 连接。
func (g *Gemini) Close() error {
	return g.client.Close()
}

func toGenaiParts(content []models.Content) []genai.Part {
	var parts []genai.Part
	for _, c := range content {
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				parts = append(parts, genai.Text(p.Text))
			}
		}
	}
	return parts
}

func fromGenaiResponse(resp *genai.GenerateContentResponse, modelName string) *models.GenerateContentResponse {
	out := &models.GenerateContentResponse{ModelVersion: modelName}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		out.Content = append(out.Content, models.Content{
			Role:  models.SpeakerModel,
			Parts: []*models.Part{{Text: sb.String()}},
		})
	}
	return out
}
