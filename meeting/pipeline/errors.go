package pipeline

import (
	"context"
	"errors"

	"github.com/BaSui01/roundtable/llm"
	"github.com/BaSui01/roundtable/types"
)

// 对外可展示的错误消息，不含任何上游细节
const (
	msgModelTimeout     = "The model did not respond in time. Please try the turn again."
	msgModelRateLimited = "The model provider is rate limiting requests. Please wait a moment and try again."
	msgModelAuthFailed  = "The model provider rejected the configured credentials."
	msgModelUnavailable = "The model provider could not produce a response."
	msgEmptyResponse    = "The model produced no content."
	msgTurnCancelled    = "The turn was cancelled before it finished."
)

func newError(code types.ErrorCode, msg string) *types.Error {
	return types.NewError(code, msg).WithHTTPStatus(types.HTTPStatusFor(code))
}

// sanitize 把 Provider 错误映射为对外错误码。原始错误只进日志，不挂在返回值上。
func sanitize(err error) *types.Error {
	if errors.Is(err, context.Canceled) {
		return newError(types.ErrTimeout, msgTurnCancelled)
	}
	switch llm.KindOf(err) {
	case llm.KindTimeout:
		return newError(types.ErrModelTimeout, msgModelTimeout).WithRetryable(true)
	case llm.KindRateLimited:
		return newError(types.ErrModelRateLimited, msgModelRateLimited).WithRetryable(true)
	case llm.KindUnauthorized:
		return newError(types.ErrModelAuthFailed, msgModelAuthFailed)
	default:
		return newError(types.ErrModelUnavailable, msgModelUnavailable).WithRetryable(true)
	}
}

// emptyResponse 空白输出
func emptyResponse() *types.Error {
	return newError(types.ErrEmptyResponse, msgEmptyResponse).WithRetryable(true)
}
