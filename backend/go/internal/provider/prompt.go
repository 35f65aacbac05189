package provider

import (
	"fmt"

	"TechPulse/backend/go/internal/models"
)

const systemPrompt = `You are a research assistant that verifies technology news and patent filings.
Answer with a single JSON object and nothing else.`

// Prompt renders the natural-language query sent to a provider.
func (q Query) Prompt() string {
	topic := q.Section.Title()
	window := q.Period.Window()
	if q.ItemType == models.ItemTypePatents {
		return fmt.Sprintf(`List up to 10 notable %s patent filings or grants from %s.
Return {"confidence": <0..1 overall verification confidence>, "patents": [{"id", "title", "summary", "sourceUrl", "filingDate", "inventors": [..]}]}.
Only include filings you can attribute to a public source.`, topic, window)
	}
	return fmt.Sprintf(`List up to 10 verified %s news stories from %s.
Return {"confidence": <0..1 overall verification confidence>, "items": [{"id", "title", "summary", "sourceUrl", "publishedAt"}]}.
Only include stories you can attribute to a public source.`, topic, window)
}

// Request builds the LLM request for q.
func (q Query) Request() *models.GenerateContentRequest {
	return models.NewPromptRequest(systemPrompt, q.Prompt(), true)
}
