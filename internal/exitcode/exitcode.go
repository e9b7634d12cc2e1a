package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/session"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, invalid form input)
	UsageError = 2

	// ConfigError indicates an unreadable or invalid configuration
	ConfigError = 3

	// StoreError indicates the session store could not be read or written
	StoreError = 4

	// AuthError indicates an authentication failure or a missing session
	AuthError = 5

	// NetworkError indicates the backend could not be reached
	NetworkError = 6

	// Interrupted indicates the user cancelled with Ctrl+C
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code by inspecting its type.
// Coded errors win over session categories so that a store failure during
// login reports as a store problem.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	var skErr *errors.SafeKartError
	if stderrors.As(err, &skErr) {
		switch skErr.Category() {
		case "AUTH":
			if skErr.Code == errors.ErrCodeAuthInvalidInput || skErr.Code == errors.ErrCodeAuthPasswordMismatch {
				return UsageError
			}
			return AuthError
		case "NET":
			return NetworkError
		case "STORE":
			return StoreError
		case "CONFIG":
			return ConfigError
		}
		return GeneralError
	}

	var sessErr *session.Error
	if stderrors.As(err, &sessErr) {
		return ForCategory(sessErr.Category)
	}

	// cobra reports flag and argument problems as untyped errors
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "required flag", "accepts "} {
		if strings.HasPrefix(msg, prefix) {
			return UsageError
		}
	}

	return GeneralError
}

// ForCategory returns the exit code for a session failure category.
func ForCategory(c session.Category) int {
	switch c {
	case session.CategoryInvalidCredentials, session.CategorySessionExpired, session.CategoryConflict:
		return AuthError
	case session.CategoryNetworkUnreachable, session.CategoryServerUnavailable, session.CategoryTimeout:
		return NetworkError
	case session.CategoryInvalidRequest:
		return UsageError
	case session.CategoryNotFound, session.CategoryUnknown:
		return GeneralError
	default:
		return GeneralError
	}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or input)"
	case ConfigError:
		return "Configuration error"
	case StoreError:
		return "Session store error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
