package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/safekart/safekart/internal/contract"
	"github.com/safekart/safekart/internal/devserver"
	"github.com/safekart/safekart/internal/metrics"
)

func newDevServerCmd(a *app) *cobra.Command {
	var (
		addr       string
		secret     string
		tokenTTL   time.Duration
		noContract bool
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local SafeKart auth API",
		Long: `Run an in-memory SafeKart auth API for local development.

Accounts live in memory and are lost when the server stops. Requests and
responses are checked against the bundled OpenAPI contract unless
--no-contract is given.

Point the CLI at it with:
  safekart --api-url http://127.0.0.1:3000/api/v1/ auth register`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			ctx := cmd.Context()
			cfg := cc.Config.DevServer
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("secret") {
				cfg.Secret = secret
			}
			if cmd.Flags().Changed("token-ttl") {
				cfg.TokenTTL = tokenTTL
			}

			reg, m := metrics.NewRegistry()
			opts := []devserver.Option{
				devserver.WithLogger(cc.Logger),
				devserver.WithMetrics(m, reg),
				devserver.WithClock(cc.Clock),
			}
			var endpoints []string
			if !noContract {
				v, err := contract.NewValidator(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, devserver.WithContract(v))
				endpoints = v.Endpoints()
			}

			srv, err := devserver.New(devserver.Config{
				Address:  cfg.Addr,
				Secret:   cfg.Secret,
				TokenTTL: cfg.TokenTTL,
			}, opts...)
			if err != nil {
				return err
			}
			if cfg.Secret == "" {
				cc.Logger.Warn("No devserver.secret set; tokens become invalid when the server restarts")
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
			}
			base := fmt.Sprintf("http://%s%s/", ln.Addr().String(), devserver.APIPrefix)
			fmt.Fprintf(cc.out, "%s %s\n", cc.Styles.Success.Render("✓ SafeKart dev server at"), base)
			for _, e := range endpoints {
				fmt.Fprintf(cc.out, "  %s\n", cc.Styles.Muted.Render(e))
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Serve(ln)
			}()

			select {
			case err := <-errCh:
				if stderrors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			cc.Logger.Info("Shutting down dev server")
			// the parent context is already cancelled
			if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			fmt.Fprintln(cc.out, cc.Styles.Muted.Render("Dev server stopped"))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides devserver.addr)")
	cmd.Flags().StringVar(&secret, "secret", "", "token signing secret (overrides devserver.secret)")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 0, "access token lifetime (overrides devserver.token_ttl)")
	cmd.Flags().BoolVar(&noContract, "no-contract", false, "skip OpenAPI request and response validation")
	return cmd
}
