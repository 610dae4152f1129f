package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/roundtable/api/handlers"
	"github.com/BaSui01/roundtable/config"
	"github.com/BaSui01/roundtable/internal/metrics"
	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/testutil/fixtures"
)

var collectorSeq atomic.Int64

// newTestCollector 每个测试使用独立命名空间，避免重复注册到默认 registry
func newTestCollector(t *testing.T) *metrics.Collector {
	return metrics.NewCollector(fmt.Sprintf("app_test_%d", collectorSeq.Add(1)), zaptest.NewLogger(t))
}

// fakeLLM 对任意对话请求返回同一句话
func fakeLLM(t *testing.T, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-test",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": reply},
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testConfig(t *testing.T, llmURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "roundtable.db")
	cfg.Database.MaxOpenConns = 1
	cfg.Database.MaxIdleConns = 1
	cfg.Database.AutoMigrate = true
	cfg.Memory.Backend = "memory"
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = llmURL
	cfg.JWT.Secret = "s3cret"
	cfg.Server.TurnRateLimitRPS = 0
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, http.Handler) {
	t.Helper()
	app, err := NewApp(cfg, newTestCollector(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		app.Close()
	})
	return app, app.Handler(ctx)
}

func signToken(t *testing.T, secret, workspace string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"workspace_id": workspace,
		"sub":          "user-1",
		"iss":          "roundtable",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func call(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, handlers.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp handlers.Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestApp_RunTurnEndToEnd(t *testing.T) {
	llmSrv, llmCalls := fakeLLM(t, "We should ship the beta on Friday.")
	cfg := testConfig(t, llmSrv.URL)
	app, h := newTestApp(t, cfg)

	m, _ := fixtures.SeedMeeting(t, app.db, meeting.StatusInProgress, fixtures.Participants)
	token := signToken(t, cfg.JWT.Secret, fixtures.DefaultWorkspace)
	base := "/api/v1/workspaces/" + fixtures.DefaultWorkspace + "/meetings/" + m.ID

	rec, resp := call(t, h, http.MethodPost, base+"/turns", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, resp.RequestID, rec.Header().Get("X-Request-ID"))

	data, _ := json.Marshal(resp.Data)
	var result meeting.TurnResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, int64(1), result.SequenceNumber)
	assert.Equal(t, "We should ship the beta on Friday.", result.Content)
	assert.Equal(t, int32(2), llmCalls.Load(), "think and speak")

	rec, resp = call(t, h, http.MethodGet, base+"/transcript", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data, _ = json.Marshal(resp.Data)
	var page handlers.TranscriptPage
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Utterances, 1)
	assert.Equal(t, result.SpeakerName, page.Utterances[0].SpeakerName)
	assert.Equal(t, int64(1), page.NextAfter)
}

func TestApp_Authentication(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	app, h := newTestApp(t, cfg)
	m, _ := fixtures.SeedMeeting(t, app.db, meeting.StatusInProgress, fixtures.Participants)
	base := "/api/v1/workspaces/" + fixtures.DefaultWorkspace + "/meetings/" + m.ID

	rec, resp := call(t, h, http.MethodGet, base+"/transcript", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	rec, _ = call(t, h, http.MethodGet, base+"/transcript", signToken(t, "wrong-secret", fixtures.DefaultWorkspace), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp = call(t, h, http.MethodGet, base+"/transcript", signToken(t, cfg.JWT.Secret, "ws-other"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	rec, _ = call(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_ReadyReportsDatabase(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	_, h := newTestApp(t, cfg)

	rec, _ := call(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "database")
}

func TestApp_UnknownProviderIsRejected(t *testing.T) {
	llmSrv, llmCalls := fakeLLM(t, "unused")
	cfg := testConfig(t, llmSrv.URL)
	app, h := newTestApp(t, cfg)
	m, _ := fixtures.SeedMeeting(t, app.db, meeting.StatusInProgress, fixtures.Participants)
	token := signToken(t, cfg.JWT.Secret, fixtures.DefaultWorkspace)

	rec, resp := call(t, h, http.MethodPost,
		"/api/v1/workspaces/"+fixtures.DefaultWorkspace+"/meetings/"+m.ID+"/turns",
		token, `{"provider":"nope"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "MODEL_UNAVAILABLE", resp.Error.Code)
	assert.Zero(t, llmCalls.Load())
}

func TestApp_RedisLockerRequiresRedis(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Meeting.LedgerLocker = "redis"
	_, err := NewApp(cfg, newTestCollector(t), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestProviderSpecs(t *testing.T) {
	cfg := config.DefaultLLMConfig()
	assert.Empty(t, providerSpecs(cfg), "no api key, no default provider")

	cfg.APIKey = "sk"
	cfg.Providers = []config.ProviderConfig{{Name: "deepseek", APIKey: "sk-ds"}}
	specs := providerSpecs(cfg)
	require.Len(t, specs, 2)
	assert.Equal(t, "openai", specs[0].Name)
	assert.Equal(t, "deepseek", specs[1].Name)
	assert.Equal(t, cfg.Timeout, specs[1].Timeout, "inherits top-level timeout")
}

func TestPipelineAndOrchestratorConfig(t *testing.T) {
	mc := config.DefaultMeetingConfig()
	pc := pipelineConfig(mc)
	assert.Equal(t, mc.ThinkTimeout, pc.ThinkTimeout)
	assert.Equal(t, float32(0.7), pc.Temperature)

	oc := orchestratorConfig(mc)
	assert.Equal(t, 4, oc.Selector.FacilitatorInterval)
	assert.Equal(t, 8, oc.Selector.ReporterInterval)
	assert.Equal(t, mc.EpisodicTTL, oc.EpisodicTTL)
}
