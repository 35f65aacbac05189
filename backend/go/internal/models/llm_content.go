package models

import "strings"

// SpeakerRole 标识对话内容的发送方。
type SpeakerRole string

const (
	SpeakerUser   SpeakerRole = "user"
	SpeakerModel  SpeakerRole = "model"
	SpeakerSystem SpeakerRole = "system"
)

// Part 是一段文本内容。
type Part struct {
	Text string `json:"text"`
}

// Content 是一个发送方的一组内容片段。
type Content struct {
	Role  SpeakerRole `json:"role"`
	Parts []*Part     `json:"parts"`
}

// GenerateContentRequest 是发往语言模型的统一请求。
type GenerateContentRequest struct {
	SystemInstruction string    `json:"systemInstruction,omitempty"`
	Content           []Content `json:"content"`
	// JSONOutput 要求模型只输出 JSON，后端支持时会启用对应的响应模式。
	JSONOutput bool `json:"jsonOutput,omitempty"`
}

// NewPromptRequest 构造单轮用户提问的请求。
func NewPromptRequest(system, prompt string, jsonOutput bool) *GenerateContentRequest {
	return &GenerateContentRequest{
		SystemInstruction: system,
		Content:           []Content{{Role: SpeakerUser, Parts: []*Part{{Text: prompt}}}},
		JSONOutput:        jsonOutput,
	}
}

// PromptText 拼接请求中所有用户文本。
func (r *GenerateContentRequest) PromptText() string {
	var sb strings.Builder
	for _, c := range r.Content {
		for _, p := range c.Parts {
			if p == nil {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// GenerateContentResponse 是语言模型的统一响应。
type GenerateContentResponse struct {
	Content      []Content `json:"content"`
	ResponseID   string    `json:"responseId,omitempty"`
	ModelVersion string    `json:"modelVersion,omitempty"`
}

// Text 返回第一个候选内容的全部文本。
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Content[0].Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// TextResponse 用单段文本构造模型响应。
func TextResponse(text, modelVersion string) *GenerateContentResponse {
	return &GenerateContentResponse{
		Content:      []Content{{Role: SpeakerModel, Parts: []*Part{{Text: text}}}},
		ModelVersion: modelVersion,
	}
}
