package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/safekart/safekart/internal/forms"
	"github.com/safekart/safekart/internal/platform"
)

// Error codes sent in the failure envelope
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

const maxBodyBytes = 1 << 20

type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Success: false, Message: message, Code: code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// firstProblem picks a deterministic message out of a form validation result.
func firstProblem(problems map[string]string) string {
	keys := slices.Sorted(maps.Keys(problems))
	return problems[keys[0]]
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req platform.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	form := forms.Register{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.Password,
		Role:            req.Role,
	}
	if req.FullName != nil {
		form.FullName = *req.FullName
	}
	if problems := form.Validate(); len(problems) > 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, firstProblem(problems))
		return
	}
	req.Email = form.Email
	req.Role = form.Role

	user, err := s.users.Create(req)
	switch {
	case errors.Is(err, ErrEmailTaken):
		writeError(w, http.StatusConflict, CodeEmailExists, "An account with this email already exists")
		return
	case err != nil:
		s.logger.WithError(err).ErrorContext(r.Context(), "Failed to create account")
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to create account")
		return
	}
	s.metrics.RecordRegistration()

	tokens, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.WithError(err).ErrorContext(r.Context(), "Failed to issue tokens")
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to issue tokens")
		return
	}
	s.logger.InfoContext(r.Context(), "Account registered", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, successEnvelope{
		Success: true,
		Message: "User registered successfully",
		Data:    platform.AuthResult{User: user, Tokens: tokens},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req platform.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "Email and password are required")
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
		return
	}
	tokens, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.WithError(err).ErrorContext(r.Context(), "Failed to issue tokens")
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to issue tokens")
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{
		Success: true,
		Message: "Login successful",
		Data:    platform.AuthResult{User: user, Tokens: tokens},
	})
}

// handleForgotPassword answers the same way whether or not the account exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req platform.ForgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	form := forms.ForgotPassword{Email: req.Email}
	if problems := form.Validate(); len(problems) > 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, firstProblem(problems))
		return
	}
	if s.users.Exists(form.Email) {
		s.logger.InfoContext(r.Context(), "Password reset requested", "email", form.Email)
	}
	writeJSON(w, http.StatusOK, successEnvelope{
		Success: true,
		Message: "If an account exists for that email, a password reset link has been sent",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required")
		return
	}

	claims, err := s.issuer.Verify(strings.TrimSpace(token))
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, CodeTokenExpired, "Token has expired")
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid token")
		return
	}

	user, err := s.users.Lookup(claims.Subject)
	if err != nil {
		writeError(w, http.StatusNotFound, CodeUserNotFound, fmt.Sprintf("User %s not found", claims.Subject))
		return
	}
	writeJSON(w, http.StatusOK, successEnvelope{
		Success: true,
		Data:    map[string]platform.User{"user": user},
	})
}
