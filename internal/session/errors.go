package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/safekart/safekart/internal/platform"
)

// Category is the closed set of failure classes an operation can report.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNetworkUnreachable
	CategoryServerUnavailable
	CategoryTimeout
	CategoryInvalidCredentials
	CategoryConflict
	CategorySessionExpired
	CategoryNotFound
	CategoryInvalidRequest
)

func (c Category) String() string {
	switch c {
	case CategoryNetworkUnreachable:
		return "network_unreachable"
	case CategoryServerUnavailable:
		return "server_unavailable"
	case CategoryTimeout:
		return "timeout"
	case CategoryInvalidCredentials:
		return "invalid_credentials"
	case CategoryConflict:
		return "conflict"
	case CategorySessionExpired:
		return "session_expired"
	case CategoryNotFound:
		return "not_found"
	case CategoryInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// User-facing messages
const (
	MsgNetworkUnreachable = "Network error. Please check your connection"
	MsgCannotConnect      = "Cannot connect to server. Please check if server is running"
	MsgServerError        = "Server error. Please try again later"
	MsgTimeout            = "Connection timeout. Please try again"
	MsgInvalidCredentials = "Invalid email or password"
	MsgConflict           = "An account already exists with this email"
	MsgSessionExpired     = "Session expired. Please login again"
	MsgLoginRequired      = "Please login to continue"
	MsgUserNotFound       = "User not found"
	MsgResourceNotFound   = "Resource not found"
	MsgInvalidRequest     = "Invalid request. Please check your input"
	MsgInvalidData        = "Invalid data. Please check your input"
	MsgInvalidEmail       = "Invalid email address"
	MsgCancelled          = "Request cancelled"
	MsgUnknown            = "An error occurred. Please try again"
)

// Error is a failed session operation. Message is the one string meant
// for the user.
type Error struct {
	Op       Operation
	Category Category
	Message  string
	// Status is the HTTP status when the server answered, otherwise 0
	Status int
	Cause  error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("operation", string(e.Op)),
		slog.String("category", e.Category.String()),
		slog.String("message", e.Message),
	}
	if e.Status != 0 {
		attrs = append(attrs, slog.Int("status", e.Status))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.Any("cause", e.Cause))
	}
	return slog.GroupValue(attrs...)
}

// Is matches another *Error by category, so callers can test
// errors.Is(err, &session.Error{Category: session.CategoryTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Category == e.Category
}

// codeCategories maps machine-readable server error codes to categories.
// They only matter when the server rejects a request with a 2xx status.
var codeCategories = map[string]Category{
	"INVALID_CREDENTIALS": CategoryInvalidCredentials,
	"UNAUTHORIZED":        CategoryInvalidCredentials,
	"EMAIL_EXISTS":        CategoryConflict,
	"USER_EXISTS":         CategoryConflict,
	"CONFLICT":            CategoryConflict,
	"TOKEN_EXPIRED":       CategorySessionExpired,
	"USER_NOT_FOUND":      CategoryNotFound,
	"NOT_FOUND":           CategoryNotFound,
	"VALIDATION_ERROR":    CategoryInvalidRequest,
	"BAD_REQUEST":         CategoryInvalidRequest,
}

// classify turns a remote failure into an Error.
func classify(op Operation, err error) *Error {
	var terr *platform.TransportError
	if errors.As(err, &terr) {
		return fromTransport(op, terr)
	}
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		return fromAPI(op, apiErr)
	}
	return &Error{Op: op, Category: CategoryUnknown, Message: MsgUnknown, Cause: err}
}

func fromTransport(op Operation, terr *platform.TransportError) *Error {
	e := &Error{Op: op, Cause: terr}
	switch terr.Kind {
	case platform.KindDNS, platform.KindUnreachable:
		e.Category, e.Message = CategoryNetworkUnreachable, MsgNetworkUnreachable
	case platform.KindRefused:
		e.Category, e.Message = CategoryServerUnavailable, MsgCannotConnect
	case platform.KindTimeout:
		e.Category, e.Message = CategoryTimeout, MsgTimeout
	case platform.KindCanceled:
		e.Category, e.Message = CategoryUnknown, MsgCancelled
	case platform.KindUnknown:
		e.Category, e.Message = CategoryUnknown, MsgUnknown
	default:
		e.Category, e.Message = CategoryUnknown, MsgUnknown
	}
	return e
}

func fromAPI(op Operation, apiErr *platform.APIError) *Error {
	e := &Error{Op: op, Status: apiErr.Status, Cause: apiErr}

	if apiErr.Rejected() {
		e.Status = 0
		category, known := codeCategories[apiErr.Code]
		if !known {
			e.Category, e.Message = CategoryUnknown, serverMessage(apiErr)
			return e
		}
		return withCategory(e, op, category)
	}

	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return withCategory(e, op, CategoryInvalidCredentials)
	case apiErr.Status == http.StatusConflict:
		return withCategory(e, op, CategoryConflict)
	case apiErr.Status == http.StatusNotFound:
		return withCategory(e, op, CategoryNotFound)
	case apiErr.Status == http.StatusBadRequest:
		return withCategory(e, op, CategoryInvalidRequest)
	case apiErr.Status == http.StatusUnprocessableEntity:
		e.Category, e.Message = CategoryInvalidRequest, MsgInvalidData
		return e
	case apiErr.Status >= 500:
		e.Category, e.Message = CategoryServerUnavailable, MsgServerError
		return e
	default:
		e.Category, e.Message = CategoryUnknown, serverMessage(apiErr)
		return e
	}
}

// withCategory fills in the category and its message, adjusted for the
// operation. An unauthorized profile fetch means the token is stale, not
// that the password was wrong.
func withCategory(e *Error, op Operation, c Category) *Error {
	if c == CategoryInvalidCredentials && op == OpRefresh {
		c = CategorySessionExpired
	}
	e.Category = c
	switch c {
	case CategoryInvalidCredentials:
		e.Message = MsgInvalidCredentials
	case CategoryConflict:
		e.Message = MsgConflict
	case CategorySessionExpired:
		e.Message = MsgSessionExpired
	case CategoryNotFound:
		e.Message = MsgResourceNotFound
		if op == OpRefresh {
			e.Message = MsgUserNotFound
		}
	case CategoryInvalidRequest:
		e.Message = MsgInvalidRequest
		if op == OpPasswordReset {
			e.Message = MsgInvalidEmail
		}
	case CategoryNetworkUnreachable:
		e.Message = MsgNetworkUnreachable
	case CategoryServerUnavailable:
		e.Message = MsgServerError
	case CategoryTimeout:
		e.Message = MsgTimeout
	case CategoryUnknown:
		e.Message = MsgUnknown
	default:
		e.Message = MsgUnknown
	}
	return e
}

func serverMessage(apiErr *platform.APIError) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgUnknown
}
