package cmd

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/safekart/safekart/internal/config"
	"github.com/safekart/safekart/internal/exitcode"
	"github.com/safekart/safekart/internal/log"
	"github.com/safekart/safekart/internal/storage"
	"github.com/safekart/safekart/internal/telemetry"
	"github.com/safekart/safekart/internal/ux"
	"github.com/safekart/safekart/internal/version"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configFile string
	apiURL     string
	timeout    time.Duration
	logLevel   string
	logFormat  string
	store      string
	format     string
	noColor    bool
	noInput    bool
}

// app is one CLI invocation: its flags, and the CommandContext built from
// them once cobra has parsed the arguments.
type app struct {
	flags rootFlags
	cc    *CommandContext

	// test seams
	store storage.Store
	clock clockwork.Clock

	span              trace.Span
	shutdownTelemetry func(context.Context) error
}

func newApp() *app {
	return &app{clock: clockwork.NewRealClock()}
}

// NewRootCmd builds the safekart command tree.
func NewRootCmd() *cobra.Command {
	return newApp().command()
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "safekart",
		Short: "Sign in to SafeKart and manage the local session",
		Long: `safekart signs you in to a SafeKart account and keeps the session on
this machine, so other tools can reuse the access token.

The session is stored in ~/.safekart/session.json by default. Set
store.passphrase (or SAFEKART_STORE_PASSPHRASE) to encrypt it, or switch
store.backend to redis or vault to share it between machines.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "config file (default ~/.safekart/config.yaml)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "SafeKart API base URL (overrides api.url)")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "request timeout (overrides api.timeout)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&a.flags.store, "store", "", "session store backend: file, memory, redis, vault")
	pf.StringVar(&a.flags.format, "format", "text", "output format: text, json, yaml")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&a.flags.noInput, "no-input", false, "never prompt; fail when input is missing")

	root.AddCommand(
		newAuthCmd(a),
		newConfigCmd(a),
		newDevServerCmd(a),
		newDoctorCmd(a),
		newVersionCmd(a),
	)
	return root
}

// annotationConfigOptional marks commands that run on defaults when the
// --config file does not exist yet.
const annotationConfigOptional = "safekart/config-optional"

// setup loads configuration and starts logging and tracing for the command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.API.URL = a.flags.apiURL
	}
	if flags.Changed("timeout") {
		cfg.API.Timeout = a.flags.timeout
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.flags.logFormat
	}
	if flags.Changed("store") {
		cfg.Store.Backend = a.flags.store
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.Log.Level)
	logCfg.Format = log.ParseFormat(cfg.Log.Format)
	logCfg.Output = log.NewOutput(cmd.ErrOrStderr())
	logCfg.ServiceVersion = version.Version
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	ctx := cmd.Context()
	shutdown, err := telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:    "safekart",
		ServiceVersion: version.Version,
		Environment:    "cli",
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	} else {
		a.shutdownTelemetry = shutdown
	}
	ctx, a.span = telemetry.StartCommandSpan(ctx, cmd.CommandPath())
	cmd.SetContext(ctx)

	a.cc = &CommandContext{
		Config:  cfg,
		Format:  a.flags.format,
		NoColor: a.flags.noColor,
		NoInput: a.flags.noInput,
		Logger:  logger,
		Styles:  ux.NewStyles(a.flags.noColor),
		Clock:   a.clock,
		out:     cmd.OutOrStdout(),
		in:      cmd.InOrStdin(),
		store:   a.store,
	}
	logger.Debug("Configuration loaded", "file", cfg.File, "api_url", cfg.API.URL, "store", cfg.Store.Backend)
	return nil
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := a.flags.configFile
	if path != "" && cmd.Annotations[annotationConfigOptional] == "true" {
		if _, err := os.Stat(path); stderrors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// execute runs root, renders any error to its stderr and releases what
// setup acquired.
func (a *app) execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)

	if a.span != nil {
		if err != nil {
			telemetry.RecordError(a.span, err)
		} else {
			telemetry.RecordSuccess(a.span)
		}
		a.span.End()
	}
	if a.cc != nil {
		if cerr := a.cc.Close(); cerr != nil {
			a.cc.Logger.WithError(cerr).Warn("Failed to close session store")
		}
	}
	if a.shutdownTelemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.shutdownTelemetry(shutdownCtx)
		cancel()
	}

	if err != nil {
		if a.cc != nil {
			code := exitcode.DetermineExitCode(err)
			a.cc.Logger.Debug("Command failed", "exit_code", code, "exit_reason", exitcode.GetExitCodeDescription(code))
		}
		ux.RenderError(root.ErrOrStderr(), err, ux.NewStyles(a.flags.noColor))
	}
	return err
}

// ExecuteContext runs the CLI with os.Args. Errors are already rendered to
// stderr; the caller only maps them to an exit code.
func ExecuteContext(ctx context.Context) error {
	a := newApp()
	return a.execute(ctx, a.command())
}

// Execute runs the CLI without a parent context.
func Execute() error {
	return ExecuteContext(context.Background())
}
