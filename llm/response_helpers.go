package llm

import (
	"context"
	"errors"
	"fmt"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// Complete 调用 Provider，并保证在 ctx 结束时立即返回 ctx.Err()。
// 不响应取消的 Provider 会在后台继续运行直到自行返回，结果被丢弃。
func Complete(ctx context.Context, p Provider, req *ChatRequest) (*ChatResponse, error) {
	type result struct {
		resp *ChatResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider %s panicked: %v", p.Name(), r)}
			}
		}()
		resp, err := p.Completion(ctx, req)
		done <- result{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// =============================================================================
// 错误归类
// =============================================================================

// Kind 面向调用方的错误大类
type Kind string

const (
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindTimeout      Kind = "timeout"
	KindOther        Kind = "other"
)

// KindOf 将任意 Provider 错误归为四类之一
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var e *Error
	if !errors.As(err, &e) {
		return KindOther
	}
	switch e.Code {
	case ErrRateLimited, ErrQuotaExceeded, ErrModelOverloaded:
		return KindRateLimited
	case ErrUnauthorized, ErrForbidden:
		return KindUnauthorized
	case ErrUpstreamTimeout:
		return KindTimeout
	default:
		return KindOther
	}
}
