package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	resp   *ChatResponse
	err    error
	block  <-chan struct{}
	panics bool
}

func (s *stubProvider) Completion(context.Context, *ChatRequest) (*ChatResponse, error) {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("provider exploded")
	}
	return s.resp, s.err
}

func (s *stubProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestFirstChoice(t *testing.T) {
	_, err := FirstChoice(nil)
	assert.Error(t, err)

	_, err = FirstChoice(&ChatResponse{})
	assert.Error(t, err)

	c, err := FirstChoice(&ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "hi"}}}})
	require.NoError(t, err)
	assert.Equal(t, "hi", c.Message.Content)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	resp, err := Complete(ctx, &stubProvider{resp: &ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "answer"}}}}}, &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Choices[0].Message.Content)

	_, err = Complete(ctx, &stubProvider{err: &Error{Code: ErrRateLimited}}, &ChatRequest{})
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestComplete_DeadlineBeatsUnresponsiveProvider(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Complete(ctx, &stubProvider{block: release, resp: &ChatResponse{}}, &ChatRequest{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestComplete_ProviderPanicBecomesError(t *testing.T) {
	_, err := Complete(context.Background(), &stubProvider{name: "bad", panics: true}, &ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, KindOther, KindOf(err))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&Error{Code: ErrRateLimited}, KindRateLimited},
		{&Error{Code: ErrQuotaExceeded}, KindRateLimited},
		{&Error{Code: ErrModelOverloaded}, KindRateLimited},
		{&Error{Code: ErrUnauthorized}, KindUnauthorized},
		{&Error{Code: ErrForbidden}, KindUnauthorized},
		{&Error{Code: ErrUpstreamTimeout}, KindTimeout},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{&Error{Code: ErrUpstreamError}, KindOther},
		{errors.New("boom"), KindOther},
		{fmt.Errorf("wrapped: %w", &Error{Code: ErrUnauthorized}), KindUnauthorized},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, Kind(""), KindOf(nil))
}
