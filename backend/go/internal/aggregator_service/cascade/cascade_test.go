package cascade

import (
	"context"
	"errors"
	"testing"

	"TechPulse/backend/go/internal/models"
	"TechPulse/backend/go/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var q = provider.Query{Section: models.SectionAI, Period: models.PeriodDaily, ItemType: models.ItemTypeNews}

func fixed(name string, confidence float64, n int) provider.Provider {
	return provider.Func{ProviderName: name, Fn: func(ctx context.Context, _ provider.Query) (*models.ProviderResult, error) {
		items := make([]models.RawItem, n)
		for i := range items {
			items[i] = models.RawItem{Title: name}
		}
		return &models.ProviderResult{Provider: name, Confidence: confidence, Items: items}, nil
	}}
}

func failing(name string, err error) provider.Provider {
	return provider.Func{ProviderName: name, Fn: func(ctx context.Context, _ provider.Query) (*models.ProviderResult, error) {
		return nil, err
	}}
}

func never(t *testing.T, name string) provider.Provider {
	return provider.Func{ProviderName: name, Fn: func(ctx context.Context, _ provider.Query) (*models.ProviderResult, error) {
		t.Errorf("provider %s must not be called", name)
		return nil, nil
	}}
}

func TestSelectFirstSuccessWins(t *testing.T) {
	s := New([]provider.Provider{fixed("first", 0.9, 2), fixed("second", 0.95, 5)}, nil)
	out := s.Select(context.Background(), q)

	require.Equal(t, Selected, out.State)
	assert.Equal(t, "first", out.Result.Provider)
	assert.Len(t, out.Result.Items, 2)
	assert.Equal(t, []string{"first"}, out.Providers())
}

func TestSelectSkipsUnavailableEmptyAndFailed(t *testing.T) {
	s := New([]provider.Provider{
		failing("nokey", provider.ErrUnavailable),
		fixed("empty", 0.99, 0),
		failing("hard", &provider.Error{Provider: "hard", Err: errors.New("502")}),
		fixed("winner", 0.3, 1),
		never(t, "after"),
	}, nil)
	out := s.Select(context.Background(), q)

	require.Equal(t, Selected, out.State)
	assert.Equal(t, "winner", out.Result.Provider)

	statuses := make([]AttemptStatus, 0, len(out.Attempts))
	for _, a := range out.Attempts {
		statuses = append(statuses, a.Status)
	}
	assert.Equal(t, []AttemptStatus{StatusUnavailable, StatusEmpty, StatusFailed, StatusSelected}, statuses)
}

func TestSelectExhausted(t *testing.T) {
	s := New([]provider.Provider{failing("a", provider.ErrUnavailable), fixed("b", 1, 0)}, nil)
	out := s.Select(context.Background(), q)
	assert.Equal(t, Exhausted, out.State)
	assert.Nil(t, out.Result)
	assert.Len(t, out.Attempts, 2)
}

func TestSelectNoProviders(t *testing.T) {
	out := New(nil, nil).Select(context.Background(), q)
	assert.Equal(t, Exhausted, out.State)
	assert.Empty(t, out.Attempts)
}

func TestSelectStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := New([]provider.Provider{never(t, "a")}, nil).Select(ctx, q)
	assert.Equal(t, Exhausted, out.State)
}

func TestSelectFirstSuccessProperty(t *testing.T) {
	misses := []func(string) provider.Provider{
		func(n string) provider.Provider { return failing(n, provider.ErrUnavailable) },
		func(n string) provider.Provider { return fixed(n, 1, 0) },
		func(n string) provider.Provider { return failing(n, &provider.Error{Provider: n, Err: errors.New("x")}) },
	}
	for size := 1; size <= 5; size++ {
		for k := 0; k < size; k++ {
			var ps []provider.Provider
			for i := 0; i < size; i++ {
				name := string(rune('a' + i))
				switch {
				case i < k:
					ps = append(ps, misses[(i+k)%len(misses)](name))
				case i == k:
					ps = append(ps, fixed(name, 0.1, 1+i))
				default:
					ps = append(ps, fixed(name, 1.0, 10))
				}
			}
			out := New(ps, nil).Select(context.Background(), q)
			require.Equal(t, Selected, out.State)
			assert.Equal(t, string(rune('a'+k)), out.Result.Provider, "size=%d k=%d", size, k)
		}
	}
}
