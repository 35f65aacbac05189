package models

import (
	"strings"
	"time"
)

// CacheKey 是缓存记录的键，格式为 "section#period"。
type CacheKey string

// NewCacheKey 由分区与时间窗口构造缓存键。
func NewCacheKey(section Section, period Period) CacheKey {
	return CacheKey(string(section) + "#" + string(period))
}

// Split 将缓存键拆回分区与时间窗口。
func (k CacheKey) Split() (Section, Period) {
	s, p, _ := strings.Cut(string(k), "#")
	return Section(s), Period(p)
}

// Generation 是一次聚合产出的待写入内容。
type Generation struct {
	Items               []ContentItem
	Provider            string
	VerificationSummary string
}

// Slot 是缓存记录中单一内容类型的完整快照。
// 每次写入都整体替换，不与上一代内容合并。
type Slot struct {
	Items               []ContentItem `json:"items" bson:"items"`
	Provider            string        `json:"provider" bson:"provider"`
	VerificationSummary string        `json:"verificationSummary" bson:"verification_summary"`
	GeneratedAt         time.Time     `json:"generatedAt" bson:"generated_at"`
	ExpiresAt           time.Time     `json:"expiresAt" bson:"expires_at"`
	AggregateScore      float64       `json:"aggregateScore" bson:"aggregate_score"`
}

// Fresh 判断该槽位在给定时刻是否仍未过期。
func (s *Slot) Fresh(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// CacheRecord 是某个 (section, period) 的持久化快照。
type CacheRecord struct {
	Key       CacheKey  `json:"key" bson:"_id"`
	Section   Section   `json:"section" bson:"section"`
	Period    Period    `json:"period" bson:"period"`
	News      *Slot     `json:"news,omitempty" bson:"news,omitempty"`
	Patents   *Slot     `json:"patents,omitempty" bson:"patents,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Slot 返回指定类型的槽位，不存在时返回 nil。
func (r *CacheRecord) Slot(itemType ItemType) *Slot {
	if r == nil {
		return nil
	}
	switch itemType {
	case ItemTypeNews:
		return r.News
	case ItemTypePatents:
		return r.Patents
	default:
		return nil
	}
}

// SetSlot 替换指定类型的槽位。
func (r *CacheRecord) SetSlot(itemType ItemType, slot *Slot) {
	switch itemType {
	case ItemTypeNews:
		r.News = slot
	case ItemTypePatents:
		r.Patents = slot
	}
}

// AggregateScore 计算条目分数的平均值，空列表返回 0。
func AggregateScore(items []ContentItem) float64 {
	if len(items) == 0 {
		return 0
	}
	total := 0
	for _, it := range items {
		total += it.Score
	}
	return float64(total) / float64(len(items))
}

// NewSlot 依据一次产出构造槽位，并附加生成时间与过期时间。
func NewSlot(gen Generation, now time.Time, ttl time.Duration) *Slot {
	items := make([]ContentItem, len(gen.Items))
	copy(items, gen.Items)
	return &Slot{
		Items:               items,
		Provider:            gen.Provider,
		VerificationSummary: gen.VerificationSummary,
		GeneratedAt:         now,
		ExpiresAt:           now.Add(ttl),
		AggregateScore:      AggregateScore(items),
	}
}
