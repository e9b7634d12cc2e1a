package ux

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/session"
)

// categoryHints are next steps shown under a failed session operation.
var categoryHints = map[session.Category]string{
	session.CategoryNetworkUnreachable: "Check your internet connection and the api.url setting",
	session.CategoryServerUnavailable:  "Check that the SafeKart API is running, or start one with 'safekart devserver'",
	session.CategoryTimeout:            "Retry, or raise the limit with --timeout",
	session.CategoryInvalidCredentials: "Reset your password with 'safekart auth forgot-password'",
	session.CategoryConflict:           "Sign in instead with 'safekart auth login'",
	session.CategorySessionExpired:     "Sign in again with 'safekart auth login'",
}

// RenderError writes err for a human. Session failures show their message
// and a hint; coded errors show code, message and suggestions.
func RenderError(w io.Writer, err error, s Styles) {
	if err == nil {
		return
	}

	var sessErr *session.Error
	var skErr *errors.SafeKartError
	switch {
	case stderrors.As(err, &skErr):
		fmt.Fprintf(w, "%s %s\n", s.Error.Render("Error ["+string(skErr.Code)+"]:"), skErr.Message)
		if skErr.Cause != nil {
			fmt.Fprintf(w, "  %s\n", s.Muted.Render(skErr.Cause.Error()))
		}
		if len(skErr.Suggestions) > 0 {
			fmt.Fprintln(w)
			for _, sug := range skErr.Suggestions {
				fmt.Fprintf(w, "  • %s\n", sug)
			}
		}
		if skErr.DocsURL != "" {
			fmt.Fprintf(w, "\n  %s\n", s.Muted.Render("Documentation: "+skErr.DocsURL))
		}
	case stderrors.As(err, &sessErr):
		fmt.Fprintf(w, "%s %s\n", s.Error.Render("Error:"), sessErr.Message)
		if hint, ok := categoryHints[sessErr.Category]; ok {
			fmt.Fprintf(w, "  %s\n", s.Muted.Render(hint))
		}
	default:
		fmt.Fprintf(w, "%s %s\n", s.Error.Render("Error:"), strings.TrimSpace(err.Error()))
	}
}
