package errors

import (
	"context"
	stdErrors "errors"
	"net"
	"net/http"
	"strings"
)

// userMessages are what a shopper sees when an upstream call fails with the given status.
var userMessages = map[int]string{
	http.StatusBadRequest:          "Some of the submitted information is invalid. Please check and try again.",
	http.StatusUnauthorized:        "Your session has expired. Please sign in again.",
	http.StatusForbidden:           "You are not allowed to perform this action.",
	http.StatusNotFound:            "The requested item could not be found.",
	http.StatusConflict:            "This request conflicts with an existing one, it may have been submitted already.",
	http.StatusUnprocessableEntity: "The request could not be processed. Please review your order.",
	http.StatusInternalServerError: "The server ran into a problem. Please try again later.",
}

const unreachableMessage = "Could not reach the shop right now. Please check your connection and try again."

// UserMessageForStatus maps an upstream HTTP status to a human-readable message.
func UserMessageForStatus(status int) string {
	if msg, ok := userMessages[status]; ok {
		return msg
	}
	if status >= http.StatusInternalServerError {
		return userMessages[http.StatusInternalServerError]
	}
	if status >= http.StatusBadRequest {
		return userMessages[http.StatusBadRequest]
	}
	return unreachableMessage
}

// CodeForStatus maps an upstream HTTP status onto the local taxonomy.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeUnprocessable
	case http.StatusTooManyRequests:
		return CodeRateLimit
	}
	if status >= http.StatusInternalServerError {
		return CodeDependency
	}
	return CodeInternal
}

// FromHTTPStatus builds a typed error for a failed upstream response. serverMessage is the
// message the upstream returned, if any; it is kept as a detail so callers that must show it
// verbatim (coupon validation) still can.
func FromHTTPStatus(status int, serverMessage string, cause error) *Error {
	details := map[string]any{"upstream_status": status}
	if msg := strings.TrimSpace(serverMessage); msg != "" {
		details["upstream_message"] = msg
	}
	return Wrap(CodeForStatus(status), cause, UserMessageForStatus(status)).WithDetails(details)
}

// FromTransport classifies network failures (timeouts, refused connections) as dependency errors.
func FromTransport(err error, op string) *Error {
	msg := unreachableMessage
	var netErr net.Error
	if stdErrors.Is(err, context.DeadlineExceeded) || (stdErrors.As(err, &netErr) && netErr.Timeout()) {
		msg = "The shop took too long to respond. Please try again."
	}
	return Wrap(CodeDependency, err, msg).WithDetails(map[string]any{"op": op})
}

// UpstreamMessage returns the message the upstream service sent with a failed response.
func UpstreamMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return ""
	}
	if details, ok := typed.Details().(map[string]any); ok {
		if msg, ok := details["upstream_message"].(string); ok {
			return msg
		}
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
