package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"textrefine/internal/chat"
	"textrefine/internal/provider"
)

const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeRateLimit      = "rate_limit_error"
	errTypeConfiguration  = "configuration_error"
	errTypeCanceled       = "request_canceled"
	errTypeUnavailable    = "upstream_unavailable"
	errTypeUpstream       = "upstream_error"
	errTypeServer         = "server_error"

	// statusClientClosedRequest reports a call the client abandoned.
	statusClientClosedRequest = 499
)

// apiError is rendered as {"error": {"message", "type", "code"}}.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func newAPIError(status int, errType, message string) *apiError {
	return &apiError{Status: status, Type: errType, Message: message}
}

func (e *apiError) Error() string {
	return e.Message
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// kindStatus maps chat failures to the response status and error type.
var kindStatus = map[chat.Kind]struct {
	status  int
	errType string
}{
	chat.KindCanceled:     {statusClientClosedRequest, errTypeCanceled},
	chat.KindPrecondition: {http.StatusServiceUnavailable, errTypeConfiguration},
	chat.KindUnavailable:  {http.StatusServiceUnavailable, errTypeUnavailable},
}

// toAPIError converts a router failure. Chat failures keep their message so
// the client sees the provider's own explanation.
func toAPIError(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, provider.ErrUnknownProfile) {
		return newAPIError(http.StatusBadRequest, errTypeInvalidRequest, err.Error())
	}

	var chatErr *chat.Error
	if !errors.As(err, &chatErr) {
		return newAPIError(http.StatusBadGateway, errTypeUpstream, "upstream provider error")
	}

	if mapped, ok := kindStatus[chatErr.Kind]; ok {
		return newAPIError(mapped.status, mapped.errType, chatErr.Message)
	}

	out := newAPIError(http.StatusBadGateway, errTypeUpstream, chatErr.Message)
	if chatErr.Kind == chat.KindHTTP {
		out.Code = fmt.Sprintf("upstream_%d", chatErr.Status)
	} else {
		out.Code = chatErr.Kind.String()
	}
	return out
}

func apiErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *apiError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &he):
		apiErr = newAPIError(he.Code, errTypeInvalidRequest, fmt.Sprint(he.Message))
	default:
		apiErr = newAPIError(http.StatusInternalServerError, errTypeServer, "internal server error")
	}
	_ = c.JSON(apiErr.Status, errorEnvelope{Error: apiErr})
}
