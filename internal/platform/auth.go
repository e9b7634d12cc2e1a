package platform

import (
	"context"
	"encoding/json"
	"net/http"
)

// Role values accepted by the register endpoint
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
)

// User is the account profile returned by the auth endpoints
type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Role      string  `json:"role,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// Tokens is the credential pair issued on login and registration
type Tokens struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken *string `json:"refreshToken,omitempty"`
}

// AuthResult is the data payload of login and register responses
type AuthResult struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// UnmarshalJSON accepts the legacy shape that carries a bare "token"
// next to the user instead of a tokens object.
func (r *AuthResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		User   User    `json:"user"`
		Tokens *Tokens `json:"tokens"`
		Token  string  `json:"token"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.User = wire.User
	switch {
	case wire.Tokens != nil:
		r.Tokens = *wire.Tokens
	default:
		r.Tokens = Tokens{AccessToken: wire.Token}
	}
	return nil
}

// LoginRequest is the body of POST auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST auth/register
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"fullName,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role,omitempty"`
}

// ForgotPasswordRequest is the body of POST auth/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "auth/login", "", LoginRequest{
		Email:    email,
		Password: password,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account. The server answers with the same payload
// as login, so no second round trip is needed.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if req.Role == "" {
		req.Role = RoleCustomer
	}
	var result AuthResult
	if err := c.do(ctx, http.MethodPost, "auth/register", "", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ForgotPassword asks the server to email a reset link
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "auth/forgot-password", "", ForgotPasswordRequest{Email: email}, nil)
}

// Me fetches the profile of the user the token belongs to
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "auth/me", token, nil, &raw); err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

// decodeUser accepts either {"user":{...}} or a bare user object.
func decodeUser(raw json.RawMessage) (*User, error) {
	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.User != nil {
		return wrapped.User, nil
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
