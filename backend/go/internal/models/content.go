package models

import (
	"strings"
	"time"
)

// Section 是内容的主题分区。
type Section string

const (
	SectionML      Section = "ml"
	SectionAI      Section = "ai"
	SectionIoT     Section = "iot"
	SectionQuantum Section = "quantum"
)

// Period 是内容聚合的时间窗口粒度。
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// 默认的分区与时间窗口，用于请求参数缺失或非法时的回退。
const (
	DefaultSection = SectionAI
	DefaultPeriod  = PeriodDaily
)

// Sections 按声明顺序列出所有分区。
var Sections = []Section{SectionML, SectionAI, SectionIoT, SectionQuantum}

// Periods 按声明顺序列出所有时间窗口。
var Periods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly}

var sectionTitles = map[Section]string{
	SectionML:      "Machine Learning",
	SectionAI:      "AI",
	SectionIoT:     "IoT",
	SectionQuantum: "Quantum Computing",
}

var periodWindows = map[Period]string{
	PeriodDaily:   "the past 24 hours",
	PeriodWeekly:  "the past week",
	PeriodMonthly: "the past month",
	PeriodYearly:  "the past year",
}

// ParseSection 解析分区字符串（忽略大小写与空白）。
func ParseSection(s string) (Section, bool) {
	candidate := Section(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sectionTitles[candidate]; ok {
		return candidate, true
	}
	return "", false
}

// ParsePeriod 解析时间窗口字符串（忽略大小写与空白）。
func ParsePeriod(s string) (Period, bool) {
	candidate := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodWindows[candidate]; ok {
		return candidate, true
	}
	return "", false
}

// Title 返回分区的展示名称，例如 "Machine Learning"。
func (s Section) Title() string {
	if t, ok := sectionTitles[s]; ok {
		return t
	}
	return strings.ToUpper(string(s))
}

// Window 返回时间窗口的自然语言描述，用于构造查询。
func (p Period) Window() string {
	if w, ok := periodWindows[p]; ok {
		return w
	}
	return string(p)
}

// ItemType 标识缓存记录中的内容槽位。
type ItemType string

const (
	ItemTypeNews    ItemType = "news"
	ItemTypePatents ItemType = "patents"
)

// ContentItem 是聚合内容的规范化单元。
// 新闻与专利共用该结构；专利的 Score 即影响力评分，对外通过 PatentItem 视图暴露。
type ContentItem struct {
	ID          string        `json:"id" bson:"id"`
	Title       string        `json:"title" bson:"title"`
	Summary     string        `json:"summary" bson:"summary"`
	SourceURL   string        `json:"sourceUrl,omitempty" bson:"source_url,omitempty"`
	Score       int           `json:"score" bson:"score"`
	PublishedAt time.Time     `json:"publishedAt" bson:"published_at"`
	Placeholder bool          `json:"placeholder,omitempty" bson:"placeholder,omitempty"`
	FilingDate  string        `json:"filingDate,omitempty" bson:"filing_date,omitempty"`
	Inventors   []string      `json:"inventors,omitempty" bson:"inventors,omitempty"`
	Related     []ContentItem `json:"related,omitempty" bson:"-"`
}

// PatentItem 是专利内容对外的 JSON 视图，以 impactScore 代替 score。
type PatentItem struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	SourceURL   string       `json:"sourceUrl,omitempty"`
	ImpactScore int          `json:"impactScore"`
	PublishedAt time.Time    `json:"publishedAt"`
	FilingDate  string       `json:"filingDate,omitempty"`
	Inventors   []string     `json:"inventors,omitempty"`
	Placeholder bool         `json:"placeholder,omitempty"`
	Related     []PatentItem `json:"related,omitempty"`
}

// AsPatent 将内容条目转换为专利视图。
func (c ContentItem) AsPatent() PatentItem {
	p := PatentItem{
		ID:          c.ID,
		Title:       c.Title,
		Summary:     c.Summary,
		SourceURL:   c.SourceURL,
		ImpactScore: c.Score,
		PublishedAt: c.PublishedAt,
		FilingDate:  c.FilingDate,
		Inventors:   c.Inventors,
		Placeholder: c.Placeholder,
	}
	for _, r := range c.Related {
		p.Related = append(p.Related, r.AsPatent())
	}
	return p
}

// PatentsOf 批量转换为专利视图。
func PatentsOf(items []ContentItem) []PatentItem {
	out := make([]PatentItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.AsPatent())
	}
	return out
}
