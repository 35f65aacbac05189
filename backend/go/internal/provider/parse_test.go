package provider

import (
	"testing"

	"TechPulse/backend/go/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantItems []models.RawItem
		wantConf  float64
		hasConf   bool
	}{
		{
			name: "object with items and confidence",
			text: `{"confidence":0.9,"items":[{"id":"n1","title":"Chip","summary":"Fast","url":"https://x"}]}`,
			wantItems: []models.RawItem{
				{ID: "n1", Title: "Chip", Summary: "Fast", SourceURL: "https://x"},
			},
			wantConf: 0.9,
			hasConf:  true,
		},
		{
			name: "bare array with aliases",
			text: `[{"headline":"H","description":"D","content":"B","link":"L","date":"2024-01-02"}]`,
			wantItems: []models.RawItem{
				{Title: "H", Summary: "D", Body: "B", SourceURL: "L", PublishedAt: "2024-01-02"},
			},
		},
		{
			name: "fenced patents with percent confidence",
			text: "Here you go:\n```json\n{\"verificationConfidence\": 80, \"patents\": [{\"name\":\"Qubit\",\"abstract\":\"A\",\"filing_date\":\"2024-03-01\",\"inventors\":\"Ada, Alan\"}]}\n```",
			wantItems: []models.RawItem{
				{Title: "Qubit", Summary: "A", FilingDate: "2024-03-01", Inventors: []string{"Ada", "Alan"}},
			},
			wantConf: 0.8,
			hasConf:  true,
		},
		{
			name: "nested confidence and object inventors",
			text: `{"verification":{"confidence":0.75},"results":[{"title":"T","inventors":[{"name":"Grace"},"Linus"]}]}`,
			wantItems: []models.RawItem{
				{Title: "T", Inventors: []string{"Grace", "Linus"}},
			},
			wantConf: 0.75,
			hasConf:  true,
		},
		{
			name:      "empty list is valid",
			text:      `{"news":[]}`,
			wantItems: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.wantItems, got.Items); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.hasConf, got.HasConfidence)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, text := range []string{
		"",
		"no json here",
		`{"items": [`,
		`{"message":"sorry"}`,
		`"just a string"`,
	} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", text)
	}
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 0.0, normalizeConfidence(-0.5))
	assert.Equal(t, 0.42, normalizeConfidence(0.42))
	assert.Equal(t, 0.5, normalizeConfidence(50))
	assert.Equal(t, 1.0, normalizeConfidence(250))
}
