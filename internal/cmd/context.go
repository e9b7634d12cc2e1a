package cmd

import (
	"context"
	"io"

	"github.com/jonboulle/clockwork"

	"github.com/safekart/safekart/internal/config"
	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/log"
	"github.com/safekart/safekart/internal/metrics"
	"github.com/safekart/safekart/internal/platform"
	"github.com/safekart/safekart/internal/security"
	"github.com/safekart/safekart/internal/session"
	"github.com/safekart/safekart/internal/storage"
	"github.com/safekart/safekart/internal/tui"
	"github.com/safekart/safekart/internal/ux"
	"github.com/safekart/safekart/internal/vault"
)

// CommandContext holds the resolved configuration and the services a
// command needs. Services are built on first use so that commands such as
// `config path` never touch the network or the session store.
type CommandContext struct {
	Config  *config.Config
	Format  string
	NoColor bool
	NoInput bool
	Logger  *log.Logger
	Styles  ux.Styles
	Clock   clockwork.Clock

	out     io.Writer
	in      io.Reader
	store   storage.Store
	manager *session.Manager
	closers []func() error
}

// Output writes data in the selected --format.
func (c *CommandContext) Output(data any) error {
	f, err := ux.NewFormatter(c.Format, &ux.FormatterOptions{Writer: c.out, NoColor: c.NoColor})
	if err != nil {
		return err
	}
	return f.Format(data)
}

// Interactive reports whether missing input may be prompted for.
func (c *CommandContext) Interactive() bool {
	return !c.NoInput && tui.ShouldPrompt()
}

// Spin runs action behind a spinner when the session is interactive.
func (c *CommandContext) Spin(ctx context.Context, title string, action func(context.Context) error) error {
	if !c.Interactive() {
		return action(ctx)
	}
	return tui.WithSpinner(ctx, title, action)
}

// Store opens the configured session store.
func (c *CommandContext) Store(ctx context.Context) (storage.Store, error) {
	if c.store != nil {
		return c.store, nil
	}

	cfg := c.Config.Store
	switch cfg.Backend {
	case config.BackendFile:
		var opts []storage.FileOption
		if cfg.Passphrase != "" {
			sealer, err := security.NewSealer(cfg.Passphrase)
			if err != nil {
				return nil, errors.NewStoreOpenError(cfg.Backend, err)
			}
			opts = append(opts, storage.WithSealer(sealer))
		}
		c.store = storage.NewFileStore(cfg.Path, opts...)
	case config.BackendMemory:
		c.Logger.Warn("The memory store keeps the session for this invocation only")
		c.store = storage.NewMemoryStore()
	case config.BackendRedis:
		rs, err := storage.OpenRedis(ctx, cfg.Redis.URL, cfg.Redis.Key)
		if err != nil {
			return nil, errors.NewStoreOpenError(cfg.Backend, err)
		}
		c.closers = append(c.closers, rs.Close)
		c.store = rs
	case config.BackendVault:
		client, err := vault.NewClient(vault.Config{
			Address:   cfg.Vault.Address,
			Token:     cfg.Vault.Token,
			MountPath: cfg.Vault.Mount,
			Namespace: cfg.Vault.Namespace,
		})
		if err != nil {
			return nil, errors.NewStoreOpenError(cfg.Backend, err)
		}
		c.store = storage.NewVaultStore(client, cfg.Vault.Path)
	default:
		return nil, errors.NewUnknownBackendError(cfg.Backend)
	}

	c.Logger.Debug("Session store opened", "backend", cfg.Backend)
	return c.store, nil
}

// Client creates the SafeKart API client.
func (c *CommandContext) Client() (*platform.Client, error) {
	return platform.NewClient(c.Config.API.URL,
		platform.WithTimeout(c.Config.API.Timeout),
		platform.WithLogger(c.Logger),
		platform.WithMetrics(metrics.Default()),
	)
}

// Manager returns the session manager over the configured store and API.
func (c *CommandContext) Manager(ctx context.Context) (*session.Manager, error) {
	if c.manager != nil {
		return c.manager, nil
	}
	store, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	c.manager = session.NewManager(client, store,
		session.WithClock(c.Clock),
		session.WithLogger(c.Logger),
		session.WithMetrics(metrics.Default()),
	)
	return c.manager, nil
}

// Close releases the session store.
func (c *CommandContext) Close() error {
	var first error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
