package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/roundtable/config"
	"github.com/BaSui01/roundtable/types"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler()), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestRequestID(t *testing.T) {
	var traceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = types.TraceID(r.Context())
	})
	h := Chain(inner, SecurityHeaders(), RequestID())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), traceID)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.Header.Set("X-Request-ID", "client-id")
	w = serve(h, r)
	assert.Equal(t, "client-id", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "client-id", traceID)
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	w := serve(Recovery(zaptest.NewLogger(t))(panicky), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/x", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := serve(h, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/v1/x", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = serve(h, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/health", "/health"},
		{
			"/api/v1/workspaces/acme/meetings/3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e/turns",
			"/api/v1/workspaces/:workspace/meetings/:id/turns",
		},
		{"/api/v1/workspaces/acme/meetings/42/transcript", "/api/v1/workspaces/:workspace/meetings/:id/transcript"},
		{"/unknown/path", "/unknown/path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

func TestWorkspaceFromPath(t *testing.T) {
	assert.Equal(t, "acme", workspaceFromPath("/api/v1/workspaces/acme/meetings/x/turns"))
	assert.Empty(t, workspaceFromPath("/api/v1/workspaces"))
	assert.Empty(t, workspaceFromPath("/health"))
}

func TestMetricsMiddleware(t *testing.T) {
	collector := newTestCollector(t)
	h := MetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/acme/meetings/1/transcript", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

// --- JWTAuth ---

func jwtConfig() config.JWTConfig {
	cfg := config.DefaultJWTConfig()
	cfg.Secret = "test-secret"
	return cfg
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"workspace_id": "acme",
		"sub":          "user-7",
		"roles":        []any{"admin", "viewer"},
		"iss":          "roundtable",
		"exp":          time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTAuth(t *testing.T) {
	var (
		gotWorkspace, gotUser string
		gotRoles              []string
	)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWorkspace, _ = types.WorkspaceID(r.Context())
		gotUser, _ = types.UserID(r.Context())
		gotRoles, _ = types.Roles(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := JWTAuth(jwtConfig(), []string{"/health"}, zaptest.NewLogger(t))(inner)

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
		r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("test-secret"), validClaims()))
		w := serve(h, r)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "acme", gotWorkspace)
		assert.Equal(t, "user-7", gotUser)
		assert.Equal(t, []string{"admin", "viewer"}, gotRoles)
	})

	t.Run("skip path", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	rejected := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{"missing header", func(*testing.T) string { return "" }},
		{"not bearer", func(*testing.T) string { return "Basic abc" }},
		{"garbage", func(*testing.T) string { return "Bearer not-a-jwt" }},
		{"wrong secret", func(t *testing.T) string {
			return "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims())
		}},
		{"expired", func(t *testing.T) string {
			c := validClaims()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("test-secret"), c)
		}},
		{"wrong issuer", func(t *testing.T) string {
			c := validClaims()
			c["iss"] = "someone-else"
			return "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("test-secret"), c)
		}},
		{"no workspace claim", func(t *testing.T) string {
			c := validClaims()
			delete(c, "workspace_id")
			return "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("test-secret"), c)
		}},
		{"alg none", func(t *testing.T) string {
			return "Bearer " + sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())
		}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/x", nil)
			if hdr := tt.header(t); hdr != "" {
				r.Header.Set("Authorization", hdr)
			}
			w := serve(h, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestJWTAuth_CustomWorkspaceClaimAndWebSocketToken(t *testing.T) {
	cfg := jwtConfig()
	cfg.WorkspaceClaim = "org"
	var got string
	h := JWTAuth(cfg, nil, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = types.WorkspaceID(r.Context())
	}))

	c := validClaims()
	c["org"] = "org-9"
	token := sign(t, jwt.SigningMethodHS256, []byte("test-secret"), c)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/x/events?access_token="+token, nil)
	r.Header.Set("Upgrade", "websocket")
	w := serve(h, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "org-9", got)

	// 普通请求不接受查询参数中的令牌
	r = httptest.NewRequest(http.MethodGet, "/api/v1/x?access_token="+token, nil)
	w = serve(h, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- TurnRateLimiter ---

func TestTurnRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := TurnRateLimiter(ctx, 0.001, 2, zaptest.NewLogger(t))(okHandler())

	turn := func(workspace string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/"+workspace+"/meetings/m1/turns", nil)
		return serve(h, r).Code
	}

	assert.Equal(t, http.StatusOK, turn("acme"))
	assert.Equal(t, http.StatusOK, turn("acme"))
	assert.Equal(t, http.StatusTooManyRequests, turn("acme"))
	assert.Equal(t, http.StatusOK, turn("globex"), "limits are per workspace")

	// 非回合请求不限流
	for range 5 {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/acme/meetings/m1/transcript", nil)
		assert.Equal(t, http.StatusOK, serve(h, r).Code)
	}
}

func TestTurnRateLimiter_PrefersContextWorkspace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := TurnRateLimiter(ctx, 0.001, 1, zaptest.NewLogger(t))(okHandler())

	turn := func(claim, pathWorkspace string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/"+pathWorkspace+"/meetings/m1/turns", nil)
		r = r.WithContext(types.WithWorkspaceID(r.Context(), claim))
		return serve(h, r).Code
	}
	assert.Equal(t, http.StatusOK, turn("acme", "a"))
	assert.Equal(t, http.StatusTooManyRequests, turn("acme", "b"))
}

func TestTurnRateLimiter_Disabled(t *testing.T) {
	h := TurnRateLimiter(context.Background(), 0, 0, zaptest.NewLogger(t))(okHandler())
	for range 10 {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces/acme/meetings/m1/turns", nil)
		assert.Equal(t, http.StatusOK, serve(h, r).Code)
	}
}
