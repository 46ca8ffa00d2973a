package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrorKind classifies a failed call for retry decisions and user messages
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not-found"
	KindServer       ErrorKind = "server-error"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindOffline      ErrorKind = "offline"
	KindUnknown      ErrorKind = "unknown"
)

// APIError is returned for every failed call. Status is 0 when no response
// arrived. Queued is set when the offline layer stored the request for replay.
type APIError struct {
	Status  int
	Message string
	Kind    ErrorKind
	Queued  bool
	Err     error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed. Client errors never do.
func (e *APIError) Retryable() bool {
	if e.Queued {
		return false
	}
	if e.Status > 0 {
		return retryableStatus(e.Status)
	}
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

var userMessages = map[ErrorKind]string{
	KindNetwork:      "Unable to reach the server. Please check your connection.",
	KindTimeout:      "The request timed out. Please try again.",
	KindUnauthorized: "Your session has expired. Please log in again.",
	KindForbidden:    "You do not have permission to do that.",
	KindNotFound:     "The requested item could not be found.",
	KindServer:       "Something went wrong on the server. Please try again later.",
	KindValidation:   "Please check your input and try again.",
	KindConflict:     "This item was changed elsewhere. Refresh and try again.",
	KindOffline:      "You are offline. The change was saved and will sync when the connection returns.",
}

const genericMessage = "An unexpected error occurred."

// UserMessage turns any error into a single sentence fit for display.
// Validation failures keep the server's message since it names the field.
func UserMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return genericMessage
	}
	if apiErr.Kind == KindValidation && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg, ok := userMessages[apiErr.Kind]; ok {
		return msg
	}
	return genericMessage
}

// kindForStatus maps an HTTP status to an error kind
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	}
	return KindUnknown
}

// transportError classifies a failure that produced no response
func transportError(err error) *APIError {
	kind := KindNetwork
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &urlErr) && urlErr.Timeout():
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &APIError{Message: err.Error(), Kind: kind, Err: err}
}
