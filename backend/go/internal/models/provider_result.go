package models

// RawItem 是外部提供方返回的单条内容，字段均可能缺失。
type RawItem struct {
	ID          string
	Title       string
	Summary     string
	Body        string
	SourceURL   string
	PublishedAt string
	FilingDate  string
	Inventors   []string
}

// ProviderResult 是单个提供方成功调用后的归一化结果。
type ProviderResult struct {
	Provider   string
	Confidence float64
	Items      []RawItem
}
