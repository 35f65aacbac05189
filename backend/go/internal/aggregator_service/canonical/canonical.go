// Package canonical maps heterogeneous provider items into ContentItems and
// expands items into related-item trees for deep dives. Everything here is pure.
package canonical

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"TechPulse/backend/go/internal/models"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/google/uuid"
)

const (
	// MaxItems bounds the size of one generation.
	MaxItems = 10
	// PlaceholderCount is the number of items substituted when every provider failed.
	PlaceholderCount = 3
	// PlaceholderScore is the fixed score of placeholder items.
	PlaceholderScore = 55

	maxDerivedTitle = 120
)

// itemNamespace seeds derived item ids so they are stable across refreshes.
var itemNamespace = uuid.MustParse("6f1c1f9e-3f0a-4d7e-9a49-0b7e4c6f2a11")

// Canonicalize converts one provider result into at most MaxItems content items.
// The score is shared by every item because confidence belongs to the call, not the item.
func Canonicalize(res *models.ProviderResult, section models.Section, period models.Period, now time.Time) []models.ContentItem {
	if res == nil {
		return nil
	}
	raw := res.Items
	if len(raw) > MaxItems {
		raw = raw[:MaxItems]
	}
	score := Score(res.Confidence)
	items := make([]models.ContentItem, 0, len(raw))
	for _, r := range raw {
		items = append(items, canonicalItem(r, res.Provider, section, period, score, now))
	}
	return items
}

// Score converts a [0,1] confidence into an integer 0..100.
func Score(confidence float64) int {
	s := int(math.Round(confidence * 100))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func canonicalItem(r models.RawItem, provider string, section models.Section, period models.Period, score int, now time.Time) models.ContentItem {
	title := cleanText(r.Title)
	summary := cleanText(r.Summary)
	body := cleanText(r.Body)

	displayTitle := title
	if displayTitle == "" {
		displayTitle = truncate(firstLine(summary), maxDerivedTitle)
	}
	if displayTitle == "" {
		displayTitle = section.Title() + " update"
	}

	displaySummary := summary
	if displaySummary == "" {
		displaySummary = body
	}
	if displaySummary == "" {
		displaySummary = placeholderSummary(section, period)
	}

	sourceURL := strings.TrimSpace(r.SourceURL)
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = DeriveID(provider, displayTitle, sourceURL)
	}

	return models.ContentItem{
		ID:          id,
		Title:       displayTitle,
		Summary:     displaySummary,
		SourceURL:   sourceURL,
		Score:       score,
		PublishedAt: parseTime(r.PublishedAt, now),
		FilingDate:  strings.TrimSpace(r.FilingDate),
		Inventors:   r.Inventors,
	}
}

// DeriveID returns a deterministic id for items the provider did not identify.
func DeriveID(provider, title, sourceURL string) string {
	return uuid.NewSHA1(itemNamespace, []byte(provider+"\x00"+strings.ToLower(title)+"\x00"+sourceURL)).String()
}

// Placeholders is the fixed set substituted when the cascade is exhausted.
func Placeholders(section models.Section, period models.Period, itemType models.ItemType, now time.Time) []models.ContentItem {
	kind := "news"
	if itemType == models.ItemTypePatents {
		kind = "patent"
	}
	items := make([]models.ContentItem, 0, PlaceholderCount)
	for i := 1; i <= PlaceholderCount; i++ {
		items = append(items, models.ContentItem{
			ID:          fmt.Sprintf("%s-%s-%s-placeholder-%d", section, period, itemType, i),
			Title:       fmt.Sprintf("%s %s update %d", section.Title(), kind, i),
			Summary:     placeholderSummary(section, period),
			Score:       PlaceholderScore,
			PublishedAt: now,
			Placeholder: true,
		})
	}
	return items
}

// PlaceholderID is the id used for deep dives when nothing is cached for the key.
func PlaceholderID(section models.Section, period models.Period) string {
	return fmt.Sprintf("%s-%s-placeholder", section, period)
}

// PlaceholderItem synthesizes a single item for deep-dive misses.
func PlaceholderItem(section models.Section, period models.Period, id string, now time.Time) models.ContentItem {
	if id == "" {
		id = PlaceholderID(section, period)
	}
	return models.ContentItem{
		ID:          id,
		Title:       section.Title() + " update",
		Summary:     placeholderSummary(section, period),
		Score:       PlaceholderScore,
		PublishedAt: now,
		Placeholder: true,
	}
}

// UnavailableSummary is the verification summary stored with placeholder generations.
func UnavailableSummary(attempted int) string {
	if attempted == 0 {
		return "Verification providers are unavailable: none configured. Showing placeholder content."
	}
	return fmt.Sprintf("Verification providers are unavailable: %d tried, none returned items. Showing placeholder content.", attempted)
}

// VerifiedSummary describes a generation produced by a provider.
func VerifiedSummary(provider string, confidence float64, count int) string {
	return fmt.Sprintf("Verified by %s with %d%% confidence across %d items.", provider, Score(confidence), count)
}

func placeholderSummary(section models.Section, period models.Period) string {
	return fmt.Sprintf("Latest %s developments for the %s window are being compiled.", section.Title(), period)
}

// cleanText converts HTML fragments to Markdown and trims whitespace.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max-1])) + "…"
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "January 2, 2006", "Jan 2, 2006"}

func parseTime(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
