// Package search 提供回合内可选的事实检索能力。
//
// 检索是尽力而为的：未配置密钥或没有可用结果时返回空串，而不是错误。
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/roundtable/internal/tlsutil"
)

// Client 检索客户端
type Client interface {
	Search(ctx context.Context, query string) (string, error)
}

// Noop 不做任何检索
type Noop struct{}

// Search 实现 Client
func (Noop) Search(context.Context, string) (string, error) { return "", nil }

// Config HTTP 检索配置
type Config struct {
	// Endpoint 检索 API 地址，POST JSON {"query": ..., "max_results": ...}
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// APIKey 为空时所有检索返回空串
	APIKey string `yaml:"api_key" json:"api_key"`
	// MaxResults 每次最多取多少条
	MaxResults int `yaml:"max_results" json:"max_results"`
	// MaxChars 合并后结果文本的上限
	MaxChars int `yaml:"max_chars" json:"max_chars"`
	// Timeout HTTP 客户端超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPClient 调用 JSON 检索 API
type HTTPClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient 创建 HTTP 检索客户端
func NewHTTPClient(cfg Config, logger *zap.Logger) *HTTPClient {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "search")),
	}
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search 实现 Client
func (c *HTTPClient) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if c.cfg.APIKey == "" || c.cfg.Endpoint == "" || query == "" {
		return "", nil
	}

	payload, err := json.Marshal(searchRequest{Query: query, MaxResults: c.cfg.MaxResults})
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	var b strings.Builder
	if sr.Answer != "" {
		b.WriteString(sr.Answer)
		b.WriteString("\n")
	}
	for i, r := range sr.Results {
		if i >= c.cfg.MaxResults {
			break
		}
		fmt.Fprintf(&b, "- %s: %s", r.Title, r.Content)
		if r.URL != "" {
			fmt.Fprintf(&b, " (%s)", r.URL)
		}
		b.WriteString("\n")
	}

	text := Truncate(strings.TrimSpace(b.String()), c.cfg.MaxChars)
	c.logger.Debug("search done",
		zap.String("query", query),
		zap.Int("results", len(sr.Results)),
		zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

// Truncate 按字符截断并追加省略号
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
