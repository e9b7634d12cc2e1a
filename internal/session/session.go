// Package session owns the persisted SafeKart login: tokens plus the cached
// identity of the signed-in user.
package session

import (
	"github.com/safekart/safekart/internal/platform"
)

// Storage keys. The names match what earlier SafeKart clients wrote.
const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUserID       = "user_id"
	KeyUserEmail    = "user_email"
	KeyUserPhone    = "user_phone"
	KeyUserRole     = "user_role"
	KeyUserFullName = "user_full_name"
)

// Keys lists every key the manager writes.
var Keys = []string{
	KeyAuthToken,
	KeyRefreshToken,
	KeyUserID,
	KeyUserEmail,
	KeyUserPhone,
	KeyUserRole,
	KeyUserFullName,
}

// Session is a snapshot of the persisted login. Callers receive copies.
type Session struct {
	UserID       string  `json:"user_id" yaml:"user_id"`
	Email        string  `json:"email" yaml:"email"`
	AccessToken  string  `json:"-" yaml:"-"`
	RefreshToken *string `json:"-" yaml:"-"`
	Role         string  `json:"role" yaml:"role"`
	Phone        *string `json:"phone,omitempty" yaml:"phone,omitempty"`
	FullName     *string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
}

// Welcome is the greeting shown to a signed-in user.
func (s *Session) Welcome() string {
	if s == nil || s.FullName == nil || *s.FullName == "" {
		return "Welcome!"
	}
	return "Welcome, " + *s.FullName + "!"
}

// Outcome is the result of an operation that yields a session. Exactly one
// of Session and Err is set.
type Outcome struct {
	Session *Session
	Err     *Error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Session != nil
}

// Result unpacks the outcome in the usual (value, error) form.
func (o Outcome) Result() (*Session, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Session, nil
}

func success(s *Session) Outcome {
	return Outcome{Session: s}
}

func failure(err *Error) Outcome {
	return Outcome{Err: err}
}

// RegisterParams are the inputs of Register. FullName and Phone are
// optional; the server derives a display name when FullName is absent.
type RegisterParams struct {
	Email    string
	Password string
	FullName *string
	Phone    *string
	// Role defaults to customer
	Role string
}

func (p RegisterParams) request() platform.RegisterRequest {
	role := p.Role
	if role == "" {
		role = platform.RoleCustomer
	}
	return platform.RegisterRequest{
		Email:    p.Email,
		Password: p.Password,
		FullName: p.FullName,
		Phone:    p.Phone,
		Role:     role,
	}
}

// mergeProfile applies a fetched profile over the cached session.
func mergeProfile(current *Session, u platform.User) Session {
	s := *current
	s.UserID = u.ID
	if u.Email != "" {
		s.Email = u.Email
	}
	if u.Role != "" {
		s.Role = u.Role
	}
	if s.Role == "" {
		s.Role = platform.RoleCustomer
	}
	if u.Phone != nil {
		s.Phone = u.Phone
	}
	if u.FullName != nil {
		s.FullName = u.FullName
	}
	return s
}

func fromUser(u platform.User) Session {
	role := u.Role
	if role == "" {
		role = platform.RoleCustomer
	}
	return Session{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     role,
		Phone:    u.Phone,
		FullName: u.FullName,
	}
}
