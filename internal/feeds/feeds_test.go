package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcFeed struct {
	name, section string
	fn            func(ctx context.Context) (string, error)
}

func (f funcFeed) Name() string                              { return f.name }
func (f funcFeed) Section() string                           { return f.section }
func (f funcFeed) Fetch(ctx context.Context) (string, error) { return f.fn(ctx) }

func TestCollect_FailuresAreIsolated(t *testing.T) {
	list := []Feed{
		funcFeed{"a", "news", func(context.Context) (string, error) { return " headline one ", nil }},
		funcFeed{"b", "news", func(context.Context) (string, error) { return "", errors.New("rss down") }},
		funcFeed{"c", "sentiment", func(context.Context) (string, error) { return "greed", nil }},
		funcFeed{"d", "news", func(context.Context) (string, error) { return "headline two", nil }},
	}
	res := Collect(context.Background(), list, time.Second)
	require.Len(t, res, 4)
	assert.Equal(t, "headline one", res[0].Text)
	assert.Error(t, res[1].Err)
	assert.Empty(t, res[1].Text)

	sections := BySection(res)
	assert.Equal(t, "headline one\n\nheadline two", sections["news"])
	assert.Equal(t, "greed", sections["sentiment"])
}

func TestCollect_Timeout(t *testing.T) {
	slow := funcFeed{"slow", "forecast", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	res := Collect(context.Background(), []Feed{slow}, 20*time.Millisecond)
	assert.ErrorIs(t, res[0].Err, context.DeadlineExceeded)
}

func TestStaticFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`items:
  - title: ETF inflows
    body: record week
    source: coindesk
    date: "2024-01-01"
  - title: Only title
  - body: ""
  - title: Dropped by limit
`), 0o644))

	text, err := NewStaticFeed("news", "news", path, 3).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "- ETF inflows: record week (coindesk, 2024-01-01)\n- Only title\n", text)

	require.NoError(t, os.WriteFile(path, []byte("items:\n  - headline: x\n"), 0o644))
	_, err = NewStaticFeed("news", "news", path, 0).Fetch(context.Background())
	assert.Error(t, err)

	_, err = NewStaticFeed("news", "news", filepath.Join(t.TempDir(), "missing.yaml"), 0).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFearGreedFeed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"data":[
			{"value":"72","value_classification":"Greed","timestamp":"1704067200","time_until_update":"3600"},
			{"value":"65","value_classification":"Greed","timestamp":"1703980800"}
		],"metadata":{"error":null}}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFearGreedFeed("fng", "sentiment", srv.URL, time.Second)
	f.nowFn = func() time.Time { return now }

	text, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Crypto Fear & Greed Index: 72 (Greed)\nPrevious days (newest first): 65", text)

	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(2 * time.Hour)
	_, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFearGreedFeed_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewFearGreedFeed("fng", "sentiment", srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}
