package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"TechPulse/backend/go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuggingFaceGenerateContent(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody hfRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[{"generated_text":"{\"items\":[]}"}]`))
	}))
	defer srv.Close()

	hf, err := NewHuggingFace("org/model", "tok", srv.URL, srv.Client())
	require.NoError(t, err)

	resp, err := hf.GenerateContent(context.Background(), models.NewPromptRequest("be terse", "list news", true))
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "/org/model", gotPath)
	assert.Equal(t, "be terse\n\nlist news", gotBody.Inputs)
	assert.Equal(t, `{"items":[]}`, resp.Text())
}

func TestHuggingFaceNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	hf, err := NewHuggingFace("m", "tok", srv.URL+"/", nil)
	require.NoError(t, err)

	_, err = hf.GenerateContent(context.Background(), models.NewPromptRequest("", "x", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
