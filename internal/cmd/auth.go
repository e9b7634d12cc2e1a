package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/forms"
	"github.com/safekart/safekart/internal/platform"
	"github.com/safekart/safekart/internal/session"
	"github.com/safekart/safekart/internal/tui"
	"github.com/safekart/safekart/internal/ux"
)

func newAuthCmd(a *app) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage your SafeKart session",
		Long: `Manage your SafeKart session.

Subcommands:
  register         Create an account and sign in
  login            Sign in with email and password
  logout           Remove the stored session
  status           Show the stored session
  refresh          Reload your profile from the server
  forgot-password  Email a password reset link
  token            Print the access token for scripts

Examples:
  safekart auth register --email ada@example.com --name "Ada Lovelace"
  safekart auth login --email ada@example.com --password-stdin < pw.txt
  safekart auth status --refresh
  safekart auth logout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	authCmd.AddCommand(
		newAuthLoginCmd(a),
		newAuthRegisterCmd(a),
		newAuthLogoutCmd(a),
		newAuthStatusCmd(a),
		newAuthRefreshCmd(a),
		newAuthForgotPasswordCmd(a),
		newAuthTokenCmd(a),
	)
	return authCmd
}

// readPassword reads one line from r, for --password-stdin.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(errors.ErrCodeAuthPromptFailed, "failed to read password from stdin", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// runOutcome runs op behind a spinner and returns its session.
func runOutcome(ctx context.Context, cc *CommandContext, title string, op func(context.Context) session.Outcome) (*session.Session, error) {
	var out session.Outcome
	err := cc.Spin(ctx, title, func(ctx context.Context) error {
		out = op(ctx)
		_, err := out.Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	return out.Session, nil
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var (
		form          forms.Login
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password and store the session.

Missing values are prompted for when the terminal is interactive.

Examples:
  safekart auth login
  safekart auth login --email ada@example.com --password-stdin < pw.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			if passwordStdin {
				pw, err := readPassword(cc.in)
				if err != nil {
					return err
				}
				form.Password = pw
			}
			if cc.Interactive() {
				if err := tui.PromptFields("Sign in to SafeKart",
					tui.Field{Prompt: tui.Prompt{Message: "Email", Placeholder: "you@example.com"}, Value: &form.Email},
					tui.Field{Prompt: tui.Prompt{Message: "Password", Secret: true}, Value: &form.Password},
				); err != nil {
					return err
				}
			}
			if err := forms.Check(&form); err != nil {
				return err
			}

			mgr, err := cc.Manager(cmd.Context())
			if err != nil {
				return err
			}
			if mgr.IsLoggedIn(cmd.Context()) {
				cc.Logger.Info("Replacing the stored session")
			}
			s, err := runOutcome(cmd.Context(), cc, "Signing in...", func(ctx context.Context) session.Outcome {
				return mgr.Login(ctx, form.Email, form.Password)
			})
			if err != nil {
				return err
			}
			return cc.Output(newSessionView("Signed in as "+s.Email, s, cc.Clock.Now()))
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (visible in shell history; prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newAuthRegisterCmd(a *app) *cobra.Command {
	var (
		form          forms.Register
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Long: `Create a SafeKart account and store the new session.

Name and phone are optional. The role defaults to customer.

Examples:
  safekart auth register
  safekart auth register --email shop@example.com --name "Corner Shop" --role vendor --password-stdin < pw.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			if passwordStdin {
				pw, err := readPassword(cc.in)
				if err != nil {
					return err
				}
				form.Password = pw
				form.ConfirmPassword = pw
			}
			if cc.Interactive() {
				if err := tui.PromptFields("Create your SafeKart account",
					tui.Field{Prompt: tui.Prompt{Message: "Email", Placeholder: "you@example.com"}, Value: &form.Email},
					tui.Field{Prompt: tui.Prompt{Message: "Full name (optional)"}, Value: &form.FullName},
					tui.Field{Prompt: tui.Prompt{Message: "Phone (optional)"}, Value: &form.Phone},
					tui.Field{Prompt: tui.Prompt{Message: "Password", Secret: true}, Value: &form.Password},
					tui.Field{Prompt: tui.Prompt{Message: "Confirm password", Secret: true}, Value: &form.ConfirmPassword},
				); err != nil {
					return err
				}
				if !cmd.Flags().Changed("role") {
					role, err := tui.PromptForSelect("Account type", []string{platform.RoleCustomer, platform.RoleVendor})
					if err != nil {
						return err
					}
					form.Role = role
				}
			} else if form.ConfirmPassword == "" {
				// flags-only use has nothing to confirm against
				form.ConfirmPassword = form.Password
			}
			if err := forms.Check(&form); err != nil {
				return err
			}

			mgr, err := cc.Manager(cmd.Context())
			if err != nil {
				return err
			}
			params := form.Params()
			s, err := runOutcome(cmd.Context(), cc, "Creating account...", func(ctx context.Context) session.Outcome {
				return mgr.Register(ctx, params)
			})
			if err != nil {
				return err
			}
			return cc.Output(newSessionView("Account created for "+s.Email, s, cc.Clock.Now()))
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&form.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&form.Role, "role", "", "account role: customer or vendor")
	cmd.Flags().StringVar(&form.Password, "password", "", "password, at least 6 characters (prefer --password-stdin)")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "repeat the password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			ctx := cmd.Context()
			mgr, err := cc.Manager(ctx)
			if err != nil {
				return err
			}
			current, readErr := mgr.Current(ctx)
			if readErr != nil {
				cc.Logger.WithError(readErr).Warn("Stored session is unreadable; removing it")
			}
			if current == nil {
				// still clear leftovers of a partial or unreadable session
				if err := mgr.SignOut(ctx); err != nil {
					return err
				}
				if readErr != nil {
					return cc.Output(notice{Message: "Signed out"})
				}
				return cc.Output(notice{Message: "Not signed in"})
			}

			if !yes && cc.Interactive() {
				ok, err := tui.PromptForConfirmation(fmt.Sprintf("Sign out %s?", current.Email), true)
				if err != nil {
					return err
				}
				if !ok {
					return cc.Output(notice{Message: "Still signed in"})
				}
			}
			if err := mgr.SignOut(ctx); err != nil {
				return err
			}
			return cc.Output(noticef("Signed out %s", current.Email))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// currentSession returns the stored session or AUTH-001.
func currentSession(ctx context.Context, cc *CommandContext) (*session.Manager, *session.Session, error) {
	mgr, err := cc.Manager(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := mgr.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if s == nil {
		return nil, nil, errors.NewNotLoggedInError()
	}
	return mgr, s, nil
}

func refresh(ctx context.Context, cc *CommandContext, mgr *session.Manager) (*session.Session, error) {
	return runOutcome(ctx, cc, "Refreshing profile...", mgr.RefreshCurrentUser)
}

func newAuthStatusCmd(a *app) *cobra.Command {
	var doRefresh bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Long: `Show the stored session without contacting the server.

With --refresh the profile is reloaded from the server first. Exits with
the authentication error code when nobody is signed in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			mgr, s, err := currentSession(cmd.Context(), cc)
			if err != nil {
				return err
			}
			if doRefresh {
				if s, err = refresh(cmd.Context(), cc, mgr); err != nil {
					return err
				}
			}
			return cc.Output(newSessionView("", s, cc.Clock.Now()))
		},
	}
	cmd.Flags().BoolVar(&doRefresh, "refresh", false, "reload the profile from the server")
	return cmd
}

func newAuthRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload your profile from the server",
		Long: `Reload your profile from the server and update the stored copy.

The access token is not renewed. When it has expired, sign in again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			mgr, _, err := currentSession(cmd.Context(), cc)
			if err != nil {
				return err
			}
			s, err := refresh(cmd.Context(), cc, mgr)
			if err != nil {
				return err
			}
			return cc.Output(newSessionView("Profile updated", s, cc.Clock.Now()))
		},
	}
}

func newAuthForgotPasswordCmd(a *app) *cobra.Command {
	var form forms.ForgotPassword
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			if form.Email == "" && cc.Interactive() {
				email, err := tui.PromptForString(tui.Prompt{
					Message:     "Email",
					Placeholder: "you@example.com",
					Required:    true,
				})
				if err != nil {
					return err
				}
				form.Email = email
			}
			if err := forms.Check(&form); err != nil {
				return err
			}

			mgr, err := cc.Manager(cmd.Context())
			if err != nil {
				return err
			}
			err = cc.Spin(cmd.Context(), "Sending reset link...", func(ctx context.Context) error {
				return mgr.SendPasswordReset(ctx, form.Email)
			})
			if err != nil {
				return err
			}
			return cc.Output(noticef("Password reset link sent to %s", form.Email))
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	return cmd
}

// tokenView prints as the bare token in text mode, for $(safekart auth token).
type tokenView struct {
	AccessToken      string     `json:"access_token" yaml:"access_token"`
	TokenFingerprint string     `json:"token_fingerprint" yaml:"token_fingerprint"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func (t tokenView) RenderText(ux.Styles) string {
	return t.AccessToken
}

func newAuthTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the access token",
		Long: `Print the stored access token, for use in scripts:

  curl -H "Authorization: Bearer $(safekart auth token)" ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			_, s, err := currentSession(cmd.Context(), cc)
			if err != nil {
				return err
			}
			v := tokenView{AccessToken: s.AccessToken, TokenFingerprint: session.Fingerprint(s.AccessToken)}
			if exp, ok := session.TokenExpiry(s.AccessToken); ok {
				exp = exp.UTC()
				v.ExpiresAt = &exp
			}
			return cc.Output(v)
		},
	}
}
