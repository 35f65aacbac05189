package canonical

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"TechPulse/backend/go/internal/models"
)

const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3
	// MaxRelated is the fan-out per node.
	MaxRelated = 3
)

// ClampDepth bounds n to [MinDepth, MaxDepth].
func ClampDepth(n int) int {
	if n < MinDepth {
		return MinDepth
	}
	if n > MaxDepth {
		return MaxDepth
	}
	return n
}

// ParseDepth reads a depth query value; missing or non-numeric values yield DefaultDepth.
func ParseDepth(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultDepth
	}
	return ClampDepth(n)
}

// Find looks up an item by id, then by case-insensitive title substring.
func Find(items []models.ContentItem, itemID string) (models.ContentItem, bool) {
	if itemID == "" {
		return models.ContentItem{}, false
	}
	for _, it := range items {
		if it.ID == itemID {
			return it, true
		}
	}
	needle := strings.ToLower(itemID)
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), needle) {
			return it, true
		}
	}
	return models.ContentItem{}, false
}

// Expand attaches up to MaxRelated related items to target, recursively, while
// the remaining depth is above 1: depth 1 returns the bare item and depth d
// yields d-1 levels of related items. Items already on the path from the root
// are never reused.
func Expand(target models.ContentItem, pool []models.ContentItem, depth int) models.ContentItem {
	depth = ClampDepth(depth)
	keywords := make([]map[string]struct{}, len(pool))
	for i, it := range pool {
		keywords[i] = titleKeywords(it.Title)
	}
	return expand(target, titleKeywords(target.Title), pool, keywords, depth, map[string]bool{})
}

func expand(node models.ContentItem, nodeKeys map[string]struct{}, pool []models.ContentItem, keys []map[string]struct{}, remaining int, path map[string]bool) models.ContentItem {
	out := node
	out.Related = nil
	if remaining <= 1 {
		return out
	}
	path[node.ID] = true
	defer delete(path, node.ID)

	type candidate struct {
		index   int
		overlap int
	}
	var candidates []candidate
	for i, it := range pool {
		if path[it.ID] {
			continue
		}
		candidates = append(candidates, candidate{index: i, overlap: overlap(nodeKeys, keys[i])})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].overlap > candidates[b].overlap
	})
	if len(candidates) > MaxRelated {
		candidates = candidates[:MaxRelated]
	}

	for _, c := range candidates {
		child := expand(pool[c.index], keys[c.index], pool, keys, remaining-1, path)
		out.Related = append(out.Related, child)
	}
	return out
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {}, "that": {},
	"this": {}, "new": {}, "update": {}, "are": {}, "its": {}, "over": {},
}

func titleKeywords(title string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
