package models

import "time"

// PairStatus 是单个 (section, period) 在一次扫描中的结果。
type PairStatus string

const (
	PairRefreshed PairStatus = "refreshed"
	PairFailed    PairStatus = "failed"
	PairAbandoned PairStatus = "abandoned"
)

// PairResult 记录单个键的刷新结果。
type PairResult struct {
	Key        CacheKey      `json:"key"`
	Status     PairStatus    `json:"status"`
	Error      string        `json:"error,omitempty"`
	Providers  []string      `json:"providers,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}

// SweepReport 是一次完整扫描的汇总。
type SweepReport struct {
	SweepID    string       `json:"sweepId"`
	Source     string       `json:"source"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Pairs      []PairResult `json:"pairs"`
	Delivered  int          `json:"delivered"`
	Dead       int          `json:"dead"`
}

// Keys 返回指定状态的键列表，保持 Pairs 的顺序。
func (r *SweepReport) Keys(status PairStatus) []string {
	var out []string
	for _, p := range r.Pairs {
		if p.Status == status {
			out = append(out, string(p.Key))
		}
	}
	return out
}

// Notification 依据报告生成变更通知。
func (r *SweepReport) Notification() ChangeNotification {
	return ChangeNotification{
		Type:      MessageTypeContentRefresh,
		SweepID:   r.SweepID,
		Refreshed: r.Keys(PairRefreshed),
		Failed:    r.Keys(PairFailed),
		Abandoned: r.Keys(PairAbandoned),
		Timestamp: r.FinishedAt,
	}
}
