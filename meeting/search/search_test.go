package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.Endpoint = srv.URL
	c := NewHTTPClient(cfg, zaptest.NewLogger(t))
	c.client = srv.Client()
	return c
}

func TestHTTPClient_Search(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "key", MaxResults: 2}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "saas pricing benchmarks", req.Query)
		assert.Equal(t, 2, req.MaxResults)

		_, _ = w.Write([]byte(`{
			"answer": "Median price rose 8%.",
			"results": [
				{"title": "Report A", "url": "https://a.example", "content": "Prices up"},
				{"title": "Report B", "content": "Churn flat"},
				{"title": "Report C", "content": "ignored"}
			]
		}`))
	})

	text, err := c.Search(context.Background(), "  saas pricing benchmarks ")
	require.NoError(t, err)
	assert.Equal(t, "Median price rose 8%.\n- Report A: Prices up (https://a.example)\n- Report B: Churn flat", text)
}

func TestHTTPClient_NoKeyReturnsEmpty(t *testing.T) {
	called := false
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) { called = true })

	text, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.False(t, called)
}

func TestHTTPClient_Errors(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "key"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Search(context.Background(), "q")
	assert.Error(t, err)

	slow := newTestClient(t, Config{APIKey: "key"}, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = slow.Search(ctx, "q")
	assert.Error(t, err)
}

func TestHTTPClient_TruncatesResult(t *testing.T) {
	c := newTestClient(t, Config{APIKey: "key", MaxChars: 10}, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"` + strings.Repeat("x", 50) + `"}`))
	})
	text, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 10)+"…", text)
}

func TestTruncateAndNoop(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "会议…", Truncate("会议纪要", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))

	text, err := Noop{}.Search(context.Background(), "q")
	assert.NoError(t, err)
	assert.Empty(t, text)
}
