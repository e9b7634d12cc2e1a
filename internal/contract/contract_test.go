package contract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(context.Background())
	require.NoError(t, err)
	return v
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, "http://localhost:3000"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SafeKart Auth API", doc.Info.Title)
	assert.NotEmpty(t, Document())
}

func TestEndpoints(t *testing.T) {
	assert.Equal(t, []string{
		"GET /api/v1/auth/me",
		"POST /api/v1/auth/forgot-password",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/register",
	}, newValidator(t).Endpoints())
}

func TestValidateRequest(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *http.Request
		wantErr bool
	}{
		{"login", jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"secret1"}`), false},
		{"login without password", jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co"}`), true},
		{"register short password", jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"a@b.co","password":"123"}`), true},
		{"register bad role", jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"a@b.co","password":"secret1","role":"admin"}`), true},
		{"register null optionals", jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"email":"a@b.co","password":"secret1","fullName":null,"phone":null}`), false},
		{"forgot password", jsonRequest(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"a@b.co"}`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRequest(ctx, tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRequestRestoresBody(t *testing.T) {
	v := newValidator(t)
	req := jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"secret1"}`)

	require.NoError(t, v.ValidateRequest(context.Background(), req))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.co","password":"secret1"}`, string(body))
}

func TestValidateRequestBearer(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "http://localhost:3000/api/v1/auth/me", nil)
	err := v.ValidateRequest(ctx, req)
	require.Error(t, err)
	assert.True(t, IsSecurityError(err))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.NoError(t, v.ValidateRequest(ctx, req))
}

func TestValidateRequestUnknownRoute(t *testing.T) {
	v := newValidator(t)
	req := httptest.NewRequest(http.MethodGet, "http://localhost:3000/health/live", nil)

	assert.ErrorIs(t, v.ValidateRequest(context.Background(), req), ErrNoRoute)
}

func TestValidateResponse(t *testing.T) {
	v := newValidator(t)
	ctx := context.Background()
	header := http.Header{"Content-Type": []string{"application/json"}}
	login := func() *http.Request {
		return jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"secret1"}`)
	}

	ok := `{"success":true,"message":"Login successful","data":{
		"user":{"id":"u1","email":"a@b.co","full_name":"A","phone":null,"role":"customer"},
		"tokens":{"accessToken":"t","refreshToken":"r"}}}`
	assert.NoError(t, v.ValidateResponse(ctx, login(), http.StatusOK, header, []byte(ok)))

	failure := `{"success":false,"message":"Invalid email or password","code":"INVALID_CREDENTIALS"}`
	assert.NoError(t, v.ValidateResponse(ctx, login(), http.StatusUnauthorized, header, []byte(failure)))

	missingTokens := `{"success":true,"data":{"user":{"id":"u1","email":"a@b.co","role":"customer"}}}`
	assert.Error(t, v.ValidateResponse(ctx, login(), http.StatusOK, header, []byte(missingTokens)))

	wrongFlag := `{"success":true,"message":"nope"}`
	assert.Error(t, v.ValidateResponse(ctx, login(), http.StatusUnauthorized, header, []byte(wrongFlag)))
}
