package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrModelUnavailable, "model unavailable").
		WithCause(root).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true)

	assert.Equal(t, ErrModelUnavailable, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "MODEL_UNAVAILABLE")
}

func TestGetErrorCode_Wrapped(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("run turn: %w", NewError(ErrMeetingNotActive, "meeting is not in progress"))
	assert.Equal(t, ErrMeetingNotActive, GetErrorCode(wrapped))
	assert.True(t, IsPrecondition(wrapped))
	assert.False(t, IsPrecondition(NewError(ErrEmptyResponse, "empty")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestHTTPStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[ErrorCode]int{
		ErrInvalidID:        http.StatusBadRequest,
		ErrMeetingNotFound:  http.StatusNotFound,
		ErrMeetingNotActive: http.StatusConflict,
		ErrNoParticipants:   http.StatusUnprocessableEntity,
		ErrModelRateLimited: http.StatusTooManyRequests,
		ErrModelTimeout:     http.StatusGatewayTimeout,
		ErrEmptyResponse:    http.StatusBadGateway,
		ErrCommitFailed:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFor(code), string(code))
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, ok := WorkspaceID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "t1")
	ctx = WithWorkspaceID(ctx, "ws-1")
	ctx = WithUserID(ctx, "u-1")
	ctx = WithRoles(ctx, []string{"admin"})

	got, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "t1", got)

	got, ok = WorkspaceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ws-1", got)

	got, ok = UserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u-1", got)

	roles, ok := Roles(ctx)
	assert.True(t, ok)
	assert.Equal(t, []string{"admin"}, roles)
}
