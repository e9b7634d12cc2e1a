package ux

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	skerrors "github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/session"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
		excludes []string
	}{
		{
			name:     "session error with hint",
			err:      fmt.Errorf("auth login: %w", &session.Error{Category: session.CategoryInvalidCredentials, Message: session.MsgInvalidCredentials}),
			contains: []string{"Error: Invalid email or password", "forgot-password"},
		},
		{
			name:     "session error without hint",
			err:      &session.Error{Category: session.CategoryUnknown, Message: "Account locked"},
			contains: []string{"Error: Account locked"},
			excludes: []string{"safekart auth"},
		},
		{
			name:     "coded error",
			err:      skerrors.NewNotLoggedInError(),
			contains: []string{"Error [AUTH-001]: not logged in", "• Run 'safekart auth login' to sign in"},
		},
		{
			name: "store failure inside session error",
			err: &session.Error{
				Category: session.CategoryUnknown,
				Message:  session.MsgUnknown,
				Cause:    skerrors.Wrap(skerrors.ErrCodeStoreWriteFailed, "failed to write session file", errors.New("disk full")),
			},
			contains: []string{"[STORE-004]", "disk full"},
		},
		{
			name:     "plain error",
			err:      errors.New("boom\n"),
			contains: []string{"Error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			RenderError(&buf, tt.err, NewStyles(true))
			out := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestRenderNilError(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, nil, NewStyles(true))
	assert.Empty(t, buf.String())
}

func TestTable(t *testing.T) {
	out := NewStyles(true).Table(
		Row{Key: "Email", Value: "ada@safekart.test"},
		Row{Key: "Role", Value: "customer"},
	)
	assert.Equal(t, "  Email: ada@safekart.test\n  Role:  customer", out)
}
