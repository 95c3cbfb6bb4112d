package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a chat failure for the retry and fallback policies.
type Kind int

const (
	// KindCanceled means the caller's context ended the call.
	KindCanceled Kind = iota + 1
	// KindPrecondition means the call was never attempted because the config is incomplete.
	KindPrecondition
	// KindHTTP means the endpoint answered with a non-success status.
	KindHTTP
	// KindNetwork means the request or the body read failed at the transport level.
	KindNetwork
	// KindResponse means a non-streaming body could not be decoded.
	KindResponse
	// KindStreamFormat means a streaming body was malformed or empty.
	KindStreamFormat
	// KindUnavailable means the circuit breaker rejected the call.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindCanceled:
		return "canceled"
	case KindPrecondition:
		return "precondition"
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindResponse:
		return "response"
	case KindStreamFormat:
		return "stream_format"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// RetryableStatus lists the only HTTP statuses eligible for automatic retry.
var RetryableStatus = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusConflict:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Error is the structured failure carried through every layer of a chat call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is a transient HTTP status.
func (e *Error) Retryable() bool {
	if e.Kind != KindHTTP {
		return false
	}
	_, ok := RetryableStatus[e.Status]
	return ok
}

// KindOf returns the Kind of err, or zero when err is not a chat error.
func KindOf(err error) Kind {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Kind
	}
	return 0
}

// IsCanceled reports whether err represents a caller cancellation.
func IsCanceled(err error) bool {
	if KindOf(err) == KindCanceled {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable reports whether err is a transient HTTP failure.
func IsRetryable(err error) bool {
	var chatErr *Error
	return errors.As(err, &chatErr) && chatErr.Retryable()
}

func canceledError(cause error) *Error {
	return &Error{Kind: KindCanceled, Message: "request aborted", Err: cause}
}

func httpError(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("API request failed: %d", status)
	}
	return &Error{Kind: KindHTTP, Status: status, Message: message}
}

func streamFormatError(message string, cause error) *Error {
	return &Error{Kind: KindStreamFormat, Message: "malformed API response: " + message, Err: cause}
}
