package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 是跨组件统一的错误码。
type ErrorCode string

// 通用错误码
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// 前置条件错误：在任何外部调用之前拒绝，调用方修正输入即可恢复。
const (
	ErrMeetingNotActive  ErrorCode = "MEETING_NOT_ACTIVE"
	ErrNoParticipants    ErrorCode = "NO_PARTICIPANTS"
	ErrInvalidID         ErrorCode = "INVALID_ID"
	ErrMeetingNotFound   ErrorCode = "MEETING_NOT_FOUND"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// 上游能力错误：消息已脱敏，可直接展示给用户。
const (
	ErrModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrModelTimeout     ErrorCode = "MODEL_TIMEOUT"
	ErrModelRateLimited ErrorCode = "MODEL_RATE_LIMITED"
	ErrModelAuthFailed  ErrorCode = "MODEL_AUTH_FAILED"
	ErrEmptyResponse    ErrorCode = "EMPTY_RESPONSE"
)

// 存储错误：提交失败，事务已回滚。
const (
	ErrCommitFailed ErrorCode = "COMMIT_FAILED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsPrecondition 判断错误是否属于前置条件类（无副作用，调用方可修正后重试）。
func IsPrecondition(err error) bool {
	switch GetErrorCode(err) {
	case ErrMeetingNotActive, ErrNoParticipants, ErrInvalidID, ErrMeetingNotFound, ErrInvalidTransition:
		return true
	}
	return false
}

// HTTPStatusFor 返回错误码对应的 HTTP 状态码。
func HTTPStatusFor(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrInvalidID:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrMeetingNotFound:
		return http.StatusNotFound
	case ErrMeetingNotActive, ErrInvalidTransition:
		return http.StatusConflict
	case ErrNoParticipants:
		return http.StatusUnprocessableEntity
	case ErrRateLimited, ErrModelRateLimited:
		return http.StatusTooManyRequests
	case ErrModelAuthFailed, ErrModelUnavailable, ErrEmptyResponse:
		return http.StatusBadGateway
	case ErrTimeout, ErrModelTimeout:
		return http.StatusGatewayTimeout
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
