package errors

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Auth errors (AUTH-001 to AUTH-099)
	ErrCodeAuthNotLoggedIn      ErrorCode = "AUTH-001"
	ErrCodeAuthInvalidInput     ErrorCode = "AUTH-002"
	ErrCodeAuthPromptFailed     ErrorCode = "AUTH-003"
	ErrCodeAuthTokenMalformed   ErrorCode = "AUTH-004"
	ErrCodeAuthPasswordMismatch ErrorCode = "AUTH-005"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetworkInvalidURL ErrorCode = "NET-001"

	// Session store errors (STORE-001 to STORE-099)
	ErrCodeStoreUnknownBackend ErrorCode = "STORE-001"
	ErrCodeStoreOpenFailed     ErrorCode = "STORE-002"
	ErrCodeStoreReadFailed     ErrorCode = "STORE-003"
	ErrCodeStoreWriteFailed    ErrorCode = "STORE-004"
	ErrCodeStoreDecryptFailed  ErrorCode = "STORE-005"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigLoadFailed ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG-002"
	ErrCodeConfigSaveFailed ErrorCode = "CONFIG-003"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
)

// SafeKartError represents an enhanced error with code, suggestions, and documentation
type SafeKartError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *SafeKartError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *SafeKartError) Unwrap() error {
	return e.Cause
}

// Category returns the prefix of the error code (AUTH, NET, STORE, ...)
func (e *SafeKartError) Category() string {
	code := string(e.Code)
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}

// New creates a new SafeKartError
func New(code ErrorCode, message string) *SafeKartError {
	return &SafeKartError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new SafeKartError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *SafeKartError {
	return &SafeKartError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *SafeKartError) WithSuggestion(suggestion string) *SafeKartError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *SafeKartError) WithSuggestions(suggestions ...string) *SafeKartError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *SafeKartError) WithDocs(url string) *SafeKartError {
	e.DocsURL = url
	return e
}

// Common error constructors for frequently used errors

// NewNotLoggedInError is returned by commands that need a stored session
func NewNotLoggedInError() *SafeKartError {
	return New(ErrCodeAuthNotLoggedIn, "not logged in").
		WithSuggestion("Run 'safekart auth login' to sign in").
		WithSuggestion("Run 'safekart auth register' to create an account")
}

// NewInvalidInputError reports form validation failures, one suggestion per field
func NewInvalidInputError(fields map[string]string) *SafeKartError {
	err := New(ErrCodeAuthInvalidInput, "invalid input")
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		err.WithSuggestion(fmt.Sprintf("%s: %s", name, fields[name]))
	}
	return err
}

// NewUnknownBackendError reports an unsupported store.backend value
func NewUnknownBackendError(backend string) *SafeKartError {
	return New(ErrCodeStoreUnknownBackend, fmt.Sprintf("unknown session store backend: %s", backend)).
		WithSuggestion("Use one of: file, memory, redis, vault").
		WithSuggestion("Set store.backend in ~/.safekart/config.yaml or SAFEKART_STORE_BACKEND")
}

// NewStoreOpenError reports a session store that could not be opened
func NewStoreOpenError(backend string, cause error) *SafeKartError {
	return Wrap(ErrCodeStoreOpenFailed, fmt.Sprintf("failed to open %s session store", backend), cause).
		WithSuggestion("Check the store settings with 'safekart config view'")
}

// NewDecryptError reports a session file that could not be decrypted
func NewDecryptError(path string, cause error) *SafeKartError {
	return Wrap(ErrCodeStoreDecryptFailed, fmt.Sprintf("failed to decrypt session file: %s", path), cause).
		WithSuggestion("Check that SAFEKART_STORE_PASSPHRASE matches the one used at login").
		WithSuggestion("Run 'safekart auth logout' to discard the stored session")
}

// NewConfigLoadError reports an unreadable or malformed config file
func NewConfigLoadError(path string, cause error) *SafeKartError {
	return Wrap(ErrCodeConfigLoadFailed, fmt.Sprintf("failed to load configuration: %s", path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion("Ensure the file is valid YAML")
}

// NewConfigInvalidError reports a config value that failed validation
func NewConfigInvalidError(key, details string) *SafeKartError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration value for %s: %s", key, details)).
		WithSuggestion("Run 'safekart config view' to inspect the effective configuration")
}

// NewInvalidURLError reports a malformed API base URL
func NewInvalidURLError(raw string, cause error) *SafeKartError {
	return Wrap(ErrCodeNetworkInvalidURL, fmt.Sprintf("invalid API URL: %s", raw), cause).
		WithSuggestion("Use an absolute URL such as http://localhost:3000/api/v1/")
}
