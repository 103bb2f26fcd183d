// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/warden/internal/api"
	"github.com/jeranaias/warden/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or input
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

var (
	// ErrNotSignedIn is returned by commands that need a stored session.
	ErrNotSignedIn = errors.New("not signed in; run 'warden login' first")

	// ErrUsage marks bad flags or arguments.
	ErrUsage = errors.New("usage error")

	// ErrConfig marks a configuration that could not be loaded or saved.
	ErrConfig = errors.New("configuration error")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "login", "config")
	Action  string // Action being performed (e.g., "set", "init")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var verrs config.ValidateErrors
	switch {
	case errors.Is(err, ErrConfig), errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, ErrNotSignedIn):
		return ExitAuthError
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	}

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return ExitGeneralError
	}
	switch apiErr.Kind {
	case api.KindUnauthorized:
		return ExitAuthError
	case api.KindNetworkUnavailable:
		return ExitNetworkError
	case api.KindTimeout:
		return ExitTimeoutError
	case api.KindNotFound:
		return ExitNotFoundError
	case api.KindValidation, api.KindBadRequest:
		return ExitUsageError
	}
	return ExitGeneralError
}

// describe returns the line shown to the user for err. Backend and
// validation failures use their friendly message.
func describe(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return api.Message(err)
	}
	return err.Error()
}
