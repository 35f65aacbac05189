package provider

import (
	"errors"
	"fmt"
	"strings"

	"TechPulse/backend/go/internal/models"

	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a response body is not JSON of a known shape.
var ErrMalformed = errors.New("malformed provider response")

var (
	listKeys       = []string{"items", "news", "articles", "patents", "results", "data"}
	idKeys         = []string{"id", "itemId", "patentNumber", "patent_number"}
	titleKeys      = []string{"title", "headline", "name"}
	summaryKeys    = []string{"summary", "description", "abstract"}
	bodyKeys       = []string{"content", "body", "text"}
	urlKeys        = []string{"sourceUrl", "source_url", "url", "link"}
	publishedKeys  = []string{"publishedAt", "published_at", "date"}
	filingKeys     = []string{"filingDate", "filing_date"}
	confidenceKeys = []string{"confidence", "verificationConfidence", "verification.confidence"}
)

// Parsed is the normalized view of one provider response.
type Parsed struct {
	Items         []models.RawItem
	Confidence    float64
	HasConfidence bool
}

// Parse extracts items and an optional confidence from a free-form model reply.
func Parse(text string) (*Parsed, error) {
	body := extractJSON(text)
	if body == "" || !gjson.Valid(body) {
		return nil, ErrMalformed
	}
	root := gjson.Parse(body)

	var list gjson.Result
	out := &Parsed{}
	switch {
	case root.IsArray():
		list = root
	case root.IsObject():
		for _, k := range listKeys {
			if r := root.Get(k); r.IsArray() {
				list = r
				break
			}
		}
		if !list.Exists() {
			return nil, fmt.Errorf("%w: no item list", ErrMalformed)
		}
		if c, ok := firstNumber(root, confidenceKeys); ok {
			out.Confidence = normalizeConfidence(c)
			out.HasConfidence = true
		}
	default:
		return nil, fmt.Errorf("%w: unexpected %s", ErrMalformed, root.Type)
	}

	list.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out.Items = append(out.Items, rawItem(v))
		}
		return true
	})
	return out, nil
}

func rawItem(v gjson.Result) models.RawItem {
	return models.RawItem{
		ID:          firstString(v, idKeys),
		Title:       firstString(v, titleKeys),
		Summary:     firstString(v, summaryKeys),
		Body:        firstString(v, bodyKeys),
		SourceURL:   firstString(v, urlKeys),
		PublishedAt: firstString(v, publishedKeys),
		FilingDate:  firstString(v, filingKeys),
		Inventors:   inventors(v.Get("inventors")),
	}
}

func firstString(v gjson.Result, keys []string) string {
	for _, k := range keys {
		r := v.Get(k)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(r.String()); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(v gjson.Result, keys []string) (float64, bool) {
	for _, k := range keys {
		if r := v.Get(k); r.Type == gjson.Number {
			return r.Float(), true
		}
	}
	return 0, false
}

func inventors(r gjson.Result) []string {
	var out []string
	switch {
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			name := v.String()
			if v.IsObject() {
				name = v.Get("name").String()
			}
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
			return true
		})
	case r.Type == gjson.String:
		for _, name := range strings.Split(r.String(), ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// normalizeConfidence accepts 0..1 or percentages and clamps to [0,1].
func normalizeConfidence(c float64) float64 {
	if c > 1 && c <= 100 {
		c /= 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// extractJSON strips markdown fences and surrounding prose.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	open := s[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(s, closing)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
