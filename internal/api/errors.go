// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failure for handling and display.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetworkUnavailable
	KindTimeout
	KindUnauthorized // 401 and 403
	KindNotFound
	KindServerError // 5xx
	KindBadRequest  // any other 4xx
	KindValidation
	KindTokenDecode
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindNetworkUnavailable: "network_unavailable",
	KindTimeout:            "timeout",
	KindUnauthorized:       "unauthorized",
	KindNotFound:           "not_found",
	KindServerError:        "server_error",
	KindBadRequest:         "bad_request",
	KindValidation:         "validation",
	KindTokenDecode:        "token_decode",
	KindCanceled:           "canceled",
}

// String returns a stable identifier, used as a metrics label.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error type returned by the client.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // server-provided message, if any
	Err     error  // underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	var s string
	switch {
	case e.Status != 0 && e.Message != "":
		s = fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		s = fmt.Sprintf("%s (HTTP %d)", e.Kind, e.Status)
	case e.Message != "":
		s = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		s = e.Kind.String()
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of status or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNetworkUnavailable = &Error{Kind: KindNetworkUnavailable}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrServerError        = &Error{Kind: KindServerError}
	ErrBadRequest         = &Error{Kind: KindBadRequest}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrTokenDecode        = &Error{Kind: KindTokenDecode}
	ErrCanceled           = &Error{Kind: KindCanceled}
)

// NewValidation returns a KindValidation error with a user-facing message.
func NewValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf classifies any error. Errors that are not *Error are classified by
// their cause (context deadline, network failure), else KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return classifyTransportError(err).Kind
}

// IsAuthError reports whether err is a 401 or 403.
func IsAuthError(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsNetworkError reports whether the server could not be reached.
func IsNetworkError(err error) bool {
	return KindOf(err) == KindNetworkUnavailable
}

// FromStatus builds the error for a non-2xx response. The body's "error"
// field becomes the message when present.
func FromStatus(status int, body []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}
	var payload struct {
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Error
	}
	return e
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

// classifyTransportError maps a failure without a response to a Kind.
func classifyTransportError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	case errors.As(err, &netErr):
		return &Error{Kind: KindNetworkUnavailable, Err: err}
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return &Error{Kind: KindNetworkUnavailable, Err: err}
		}
		return &Error{Kind: KindUnknown, Err: err}
	}
}

// Message returns the text to show the user for err.
// A server-provided message wins over the generic text for its status.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = classifyTransportError(err)
	}

	switch apiErr.Kind {
	case KindNetworkUnavailable:
		return "Unable to connect to the server. Please check your internet connection."
	case KindTimeout:
		return "Request timed out. Please try again."
	case KindCanceled:
		return "Request was cancelled."
	}

	if apiErr.Message != "" {
		return apiErr.Message
	}

	switch apiErr.Status {
	case http.StatusBadRequest:
		return "Invalid request. Please check your input."
	case http.StatusUnauthorized:
		return "Authentication failed. Please login again."
	case http.StatusForbidden:
		return "You do not have permission to perform this action."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusInternalServerError:
		return "Internal server error. Please try again later."
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable. Please try again later."
	}

	switch apiErr.Kind {
	case KindUnauthorized:
		return "Authentication failed. Please login again."
	case KindTokenDecode:
		return "Received an unreadable session token."
	}
	if apiErr.Err != nil {
		return apiErr.Err.Error()
	}
	return "An unexpected error occurred."
}
