package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/roundtable/llm"
)

func TestMapHTTPError(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		msg       string
		wantCode  llm.ErrorCode
		wantRetry bool
		wantKind  llm.Kind
	}{
		{"401 unauthorized", http.StatusUnauthorized, "Invalid API key", llm.ErrUnauthorized, false, llm.KindUnauthorized},
		{"403 forbidden", http.StatusForbidden, "Access denied", llm.ErrForbidden, false, llm.KindUnauthorized},
		{"429 rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true, llm.KindRateLimited},
		{"400 quota", http.StatusBadRequest, "You exceeded your current quota", llm.ErrQuotaExceeded, false, llm.KindRateLimited},
		{"400 invalid", http.StatusBadRequest, "bad messages", llm.ErrInvalidRequest, false, llm.KindOther},
		{"504 timeout", http.StatusGatewayTimeout, "upstream timeout", llm.ErrUpstreamTimeout, true, llm.KindTimeout},
		{"529 overloaded", 529, "overloaded", llm.ErrModelOverloaded, true, llm.KindRateLimited},
		{"502 bad gateway", http.StatusBadGateway, "bad gateway", llm.ErrUpstreamError, true, llm.KindOther},
		{"418 teapot", http.StatusTeapot, "?", llm.ErrUpstreamError, false, llm.KindOther},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := MapHTTPError(tc.status, tc.msg, "openai")
			assert.Equal(t, tc.wantCode, err.Code)
			assert.Equal(t, tc.wantRetry, err.Retryable)
			assert.Equal(t, tc.status, err.HTTPStatus)
			assert.Equal(t, "openai", err.Provider)
			assert.Equal(t, tc.wantKind, llm.KindOf(err))
		})
	}
}

// 任意状态码都映射到四类之一，且 5xx 总是可重试
func TestProperty_MapHTTPErrorTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every status maps to a kind", prop.ForAll(
		func(status int) bool {
			err := MapHTTPError(status, "msg", "p")
			switch llm.KindOf(err) {
			case llm.KindRateLimited, llm.KindUnauthorized, llm.KindTimeout, llm.KindOther:
			default:
				return false
			}
			if status >= 500 && !err.Retryable {
				return false
			}
			return err.HTTPStatus == status
		},
		gen.IntRange(400, 599),
	))

	properties.TestingRun(t)
}

func TestReadErrorMessage(t *testing.T) {
	assert.Equal(t, "bad key (type: auth)",
		ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad key","type":"auth"}}`)))
	assert.Equal(t, "bad key",
		ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad key"}}`)))
	assert.Equal(t, "plain text failure",
		ReadErrorMessage(strings.NewReader("plain text failure\n")))
}

func TestConvertAndChoose(t *testing.T) {
	msgs := ConvertMessagesToOpenAI([]llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "hi", Name: "chair"},
	})
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "chair", msgs[1].Name)

	resp := ToLLMChatResponse(OpenAICompatResponse{
		ID:      "r1",
		Model:   "m",
		Choices: []OpenAICompatChoice{{Message: OpenAICompatMessage{Role: "assistant", Content: "ok"}}},
		Usage:   &OpenAICompatUsage{TotalTokens: 9},
	}, "openai")
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
	assert.Equal(t, "openai", resp.Provider)

	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}
