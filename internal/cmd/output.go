package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/safekart/safekart/internal/session"
	"github.com/safekart/safekart/internal/ux"
)

// sessionView is the printable form of a session. The access token itself
// is never part of it.
type sessionView struct {
	headline string

	UserID           string     `json:"user_id" yaml:"user_id"`
	Email            string     `json:"email" yaml:"email"`
	FullName         *string    `json:"full_name" yaml:"full_name"`
	Phone            *string    `json:"phone" yaml:"phone"`
	Role             string     `json:"role" yaml:"role"`
	Welcome          string     `json:"welcome" yaml:"welcome"`
	TokenFingerprint string     `json:"token_fingerprint" yaml:"token_fingerprint"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired          bool       `json:"expired" yaml:"expired"`
}

func newSessionView(headline string, s *session.Session, now time.Time) sessionView {
	v := sessionView{
		headline:         headline,
		UserID:           s.UserID,
		Email:            s.Email,
		FullName:         s.FullName,
		Phone:            s.Phone,
		Role:             s.Role,
		Welcome:          s.Welcome(),
		TokenFingerprint: session.Fingerprint(s.AccessToken),
	}
	if exp, ok := session.TokenExpiry(s.AccessToken); ok {
		exp = exp.UTC()
		v.ExpiresAt = &exp
		v.Expired = !now.Before(exp)
	}
	return v
}

func orDash(p *string) string {
	if p == nil || *p == "" {
		return "-"
	}
	return *p
}

func (v sessionView) RenderText(s ux.Styles) string {
	var b strings.Builder
	if v.headline != "" {
		b.WriteString(s.Success.Render("✓ "+v.headline) + "\n")
	}
	b.WriteString(s.Title.Render(v.Welcome) + "\n\n")

	expires := "unknown"
	if v.ExpiresAt != nil {
		expires = v.ExpiresAt.Format(time.RFC3339)
		if v.Expired {
			expires += " " + s.Warning.Render("(expired)")
		}
	}
	b.WriteString(s.Table(
		ux.Row{Key: "Email", Value: v.Email},
		ux.Row{Key: "Name", Value: orDash(v.FullName)},
		ux.Row{Key: "Phone", Value: orDash(v.Phone)},
		ux.Row{Key: "Role", Value: v.Role},
		ux.Row{Key: "User ID", Value: v.UserID},
		ux.Row{Key: "Token", Value: v.TokenFingerprint},
		ux.Row{Key: "Expires", Value: expires},
	))
	return b.String()
}

// notice is a one-line confirmation; structured formats get {"message": ...}.
type notice struct {
	Message string `json:"message" yaml:"message"`
}

func (n notice) RenderText(s ux.Styles) string {
	return s.Success.Render("✓ " + n.Message)
}

func noticef(format string, args ...any) notice {
	return notice{Message: fmt.Sprintf(format, args...)}
}
