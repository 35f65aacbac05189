package models

import (
	"encoding/json"
	"strings"
	"time"
)

// 刷新触发的来源。
const (
	TriggerSchedule = "schedule"
	TriggerHTTP     = "http"
	TriggerBroker   = "broker"
	TriggerStartup  = "startup"
)

// RefreshTrigger 描述一次刷新扫描的范围。
// Sections 或 Periods 为空时表示全部；Connections 为空时通知全部在线连接。
type RefreshTrigger struct {
	Sections    []Section `json:"sections,omitempty"`
	Periods     []Period  `json:"timePeriods,omitempty"`
	Connections []string  `json:"connections,omitempty"`
	Source      string    `json:"source,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Normalize 规范化大小写并丢弃未知或重复的分区、时间窗口与空连接 ID。
func (t RefreshTrigger) Normalize() RefreshTrigger {
	out := t
	out.Sections = nil
	seenS := map[Section]bool{}
	for _, s := range t.Sections {
		if v, ok := ParseSection(string(s)); ok && !seenS[v] {
			seenS[v] = true
			out.Sections = append(out.Sections, v)
		}
	}
	out.Periods = nil
	seenP := map[Period]bool{}
	for _, p := range t.Periods {
		if v, ok := ParsePeriod(string(p)); ok && !seenP[v] {
			seenP[v] = true
			out.Periods = append(out.Periods, v)
		}
	}
	out.Connections = nil
	for _, id := range t.Connections {
		if id = strings.TrimSpace(id); id != "" {
			out.Connections = append(out.Connections, id)
		}
	}
	return out
}

// DecodeRefreshTrigger 宽松地解析刷新请求体，无法解析时返回覆盖全部键的默认触发。
func DecodeRefreshTrigger(data []byte) RefreshTrigger {
	var t RefreshTrigger
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t); err != nil {
			t = RefreshTrigger{}
		}
	}
	return t.Normalize()
}

// Pairs 展开为 (section, period) 笛卡尔积，按声明顺序排列。
func (t RefreshTrigger) Pairs() []CacheKey {
	sections := t.Sections
	if len(sections) == 0 {
		sections = Sections
	}
	periods := t.Periods
	if len(periods) == 0 {
		periods = Periods
	}
	keys := make([]CacheKey, 0, len(sections)*len(periods))
	for _, s := range sections {
		for _, p := range periods {
			keys = append(keys, NewCacheKey(s, p))
		}
	}
	return keys
}

// ChangeNotification 是扫描结束后推送给订阅者的变更摘要。
type ChangeNotification struct {
	Type      string    `json:"type"`
	SweepID   string    `json:"sweepId"`
	Refreshed []string  `json:"refreshed"`
	Failed    []string  `json:"failed,omitempty"`
	Abandoned []string  `json:"abandoned,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
