package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeRefreshTrigger(t *testing.T) {
	tr := DecodeRefreshTrigger([]byte(`{"sections":["AI","biology","ai","iot"],"timePeriods":["weekly","hourly"],"connections":[" c1 ",""]}`))
	assert.Equal(t, []Section{SectionAI, SectionIoT}, tr.Sections)
	assert.Equal(t, []Period{PeriodWeekly}, tr.Periods)
	assert.Equal(t, []string{"c1"}, tr.Connections)
	assert.Equal(t, []CacheKey{"ai#weekly", "iot#weekly"}, tr.Pairs())

	malformed := DecodeRefreshTrigger([]byte(`{"sections":`))
	assert.Len(t, malformed.Pairs(), len(Sections)*len(Periods))

	empty := DecodeRefreshTrigger(nil)
	assert.Len(t, empty.Pairs(), 16)
}

func TestSweepReportNotification(t *testing.T) {
	r := &SweepReport{SweepID: "s1", Pairs: []PairResult{
		{Key: "ai#daily", Status: PairRefreshed},
		{Key: "ml#daily", Status: PairFailed},
		{Key: "iot#daily", Status: PairAbandoned},
		{Key: "quantum#daily", Status: PairRefreshed},
	}}
	n := r.Notification()
	assert.Equal(t, MessageTypeContentRefresh, n.Type)
	assert.Equal(t, []string{"ai#daily", "quantum#daily"}, n.Refreshed)
	assert.Equal(t, []string{"ml#daily"}, n.Failed)
	assert.Equal(t, []string{"iot#daily"}, n.Abandoned)
}
