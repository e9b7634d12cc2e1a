package cmd

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/safekart/safekart/internal/health"
	"github.com/safekart/safekart/internal/session"
	"github.com/safekart/safekart/internal/ux"
)

// doctorReport is the output of `safekart doctor`.
type doctorReport struct {
	Status  health.Status             `json:"status" yaml:"status"`
	APIURL  string                    `json:"api_url" yaml:"api_url"`
	Backend string                    `json:"store_backend" yaml:"store_backend"`
	Checks  map[string]*health.Result `json:"checks" yaml:"checks"`
}

func (r doctorReport) RenderText(s ux.Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render("SafeKart doctor") + "\n")
	b.WriteString(s.Table(
		ux.Row{Key: "API", Value: r.APIURL},
		ux.Row{Key: "Store", Value: r.Backend},
	))
	b.WriteString("\n\n")

	for _, name := range slices.Sorted(maps.Keys(r.Checks)) {
		res := r.Checks[name]
		var mark string
		switch res.Status {
		case health.StatusHealthy:
			mark = s.Success.Render("✓")
		case health.StatusDegraded:
			mark = s.Warning.Render("!")
		default:
			mark = s.Error.Render("✗")
		}
		fmt.Fprintf(&b, "%s %-14s %s %s\n", mark, name, res.Message,
			s.Muted.Render(res.Latency.Round(time.Millisecond).String()))
	}
	fmt.Fprintf(&b, "\nOverall: %s", r.Status)
	return b.String()
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the session store, the API and the stored session",
		Long: `Check that the configured session store answers, that the SafeKart
API is reachable and whether the stored session is still valid.

Exits non-zero when any check is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			ctx := cmd.Context()

			checks := health.NewManager()
			checks.AddChecker(health.NewEndpointChecker("auth-api", cc.Config.API.URL,
				&http.Client{Timeout: cc.Config.API.Timeout}))

			store, err := cc.Store(ctx)
			if err != nil {
				storeErr := err
				checks.AddChecker(health.NewCheckerFunc("session-store", func(context.Context) *health.Result {
					return health.Unhealthy(storeErr.Error())
				}))
			} else {
				checks.AddChecker(health.NewStoreChecker("session-store", store))
				mgr, err := cc.Manager(ctx)
				if err != nil {
					return err
				}
				checks.AddChecker(health.NewCheckerFunc("session", sessionCheck(mgr, cc.Clock.Now)))
			}

			results := checks.Check(ctx)
			report := doctorReport{
				Status:  checks.OverallStatus(results),
				APIURL:  cc.Config.API.URL,
				Backend: cc.Config.Store.Backend,
				Checks:  results,
			}
			if err := cc.Output(report); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("doctor: %d of %d checks failed", countUnhealthy(results), len(results))
			}
			return nil
		},
	}
}

// sessionCheck reports on the stored session without contacting the API.
func sessionCheck(mgr *session.Manager, now func() time.Time) func(context.Context) *health.Result {
	return func(ctx context.Context) *health.Result {
		s, err := mgr.Current(ctx)
		if err != nil {
			return health.Unhealthy(err.Error())
		}
		if s == nil {
			return health.Healthy("not signed in")
		}
		res := health.Healthy("signed in as "+s.Email).WithDetail("email", s.Email)
		if exp, ok := session.TokenExpiry(s.AccessToken); ok {
			res.WithDetail("expires_at", exp.UTC().Format(time.RFC3339))
			if !now().Before(exp) {
				res.Status = health.StatusDegraded
				res.Message = "access token expired; run 'safekart auth login'"
			}
		}
		return res
	}
}

func countUnhealthy(results map[string]*health.Result) int {
	n := 0
	for _, r := range results {
		if r.Status == health.StatusUnhealthy {
			n++
		}
	}
	return n
}
