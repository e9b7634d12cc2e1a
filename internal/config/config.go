// Package config loads SafeKart CLI settings from ~/.safekart/config.yaml
// and SAFEKART_* environment variables using Viper.
package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/safekart/safekart/internal/errors"
	"github.com/safekart/safekart/internal/log"
)

// EnvPrefix is prepended to every environment override, e.g.
// SAFEKART_API_URL for api.url.
const EnvPrefix = "SAFEKART"

// Store backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendVault  = "vault"
)

// Backends lists the accepted store.backend values.
var Backends = []string{BackendFile, BackendMemory, BackendRedis, BackendVault}

// Config holds the CLI configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api" json:"api" yaml:"api"`
	Store     StoreConfig     `mapstructure:"store" json:"store" yaml:"store"`
	Log       LogConfig       `mapstructure:"log" json:"log" yaml:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry" yaml:"telemetry"`
	DevServer DevServerConfig `mapstructure:"devserver" json:"devserver" yaml:"devserver"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-" json:"-" yaml:"-"`
}

// APIConfig points the client at a SafeKart backend.
type APIConfig struct {
	URL     string        `mapstructure:"url" json:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

// StoreConfig selects where the session is kept between invocations.
type StoreConfig struct {
	Backend    string      `mapstructure:"backend" json:"backend" yaml:"backend"`
	Path       string      `mapstructure:"path" json:"path" yaml:"path"`
	Passphrase string      `mapstructure:"passphrase" json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
	Redis      RedisConfig `mapstructure:"redis" json:"redis" yaml:"redis"`
	Vault      VaultConfig `mapstructure:"vault" json:"vault" yaml:"vault"`
}

// RedisConfig holds the Redis session store settings.
type RedisConfig struct {
	URL string `mapstructure:"url" json:"url" yaml:"url"`
	// Key is the hash that holds the session fields
	Key string `mapstructure:"key" json:"key" yaml:"key"`
}

// VaultConfig holds the Vault session store settings.
type VaultConfig struct {
	Address string `mapstructure:"address" json:"address" yaml:"address"`
	Token   string `mapstructure:"token" json:"token,omitempty" yaml:"token,omitempty"`
	Mount   string `mapstructure:"mount" json:"mount" yaml:"mount"`
	Path    string `mapstructure:"path" json:"path" yaml:"path"`

	// Namespace is only needed on Vault Enterprise
	Namespace string `mapstructure:"namespace" json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" json:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" json:"sample_rate" yaml:"sample_rate"`
}

// DevServerConfig configures `safekart devserver`.
type DevServerConfig struct {
	Addr     string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	Secret   string        `mapstructure:"secret" json:"secret,omitempty" yaml:"secret,omitempty"`
	TokenTTL time.Duration `mapstructure:"token_ttl" json:"token_ttl" yaml:"token_ttl"`
}

// Dir returns the SafeKart home directory, ~/.safekart.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".safekart"), nil
}

// DefaultFile returns ~/.safekart/config.yaml.
func DefaultFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from configPath (or ~/.safekart/config.yaml when
// empty), applies SAFEKART_* environment overrides and validates the result.
// A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, errors.NewConfigLoadError("~/.safekart/config.yaml", err)
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigLoadError(configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigLoadError(v.ConfigFileUsed(), err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Store.Path = expandHome(cfg.Store.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults are well-formed; Unmarshal cannot fail on them
	_ = v.Unmarshal(&cfg)
	cfg.Store.Path = expandHome(cfg.Store.Path)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", "http://localhost:3000/api/v1/")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", filepath.Join("~", ".safekart", "session.json"))
	v.SetDefault("store.passphrase", "")
	v.SetDefault("store.redis.url", "")
	v.SetDefault("store.redis.key", "safekart:session")
	v.SetDefault("store.vault.address", "")
	v.SetDefault("store.vault.token", "")
	v.SetDefault("store.vault.mount", "secret")
	v.SetDefault("store.vault.path", "safekart/session")
	v.SetDefault("store.vault.namespace", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("devserver.addr", "127.0.0.1:3000")
	v.SetDefault("devserver.secret", "")
	v.SetDefault("devserver.token_ttl", "1h")
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.NewConfigInvalidError("api.url", fmt.Sprintf("%q is not an absolute URL", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		return errors.NewConfigInvalidError("api.timeout", "must be positive")
	}

	if !slices.Contains(Backends, c.Store.Backend) {
		return errors.NewUnknownBackendError(c.Store.Backend)
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return errors.NewConfigInvalidError("store.path", "required for the file backend")
		}
	case BackendRedis:
		if c.Store.Redis.URL == "" {
			return errors.NewConfigInvalidError("store.redis.url", "required for the redis backend")
		}
	case BackendVault:
		if c.Store.Vault.Address == "" {
			return errors.NewConfigInvalidError("store.vault.address", "required for the vault backend")
		}
	}

	if !log.ValidLevel(c.Log.Level) {
		return errors.NewConfigInvalidError("log.level", fmt.Sprintf("%q is not debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.NewConfigInvalidError("log.format", fmt.Sprintf("%q is not text or json", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.NewConfigInvalidError("telemetry.sample_rate", "must be between 0 and 1")
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Store.Passphrase = mask(out.Store.Passphrase)
	out.Store.Vault.Token = mask(out.Store.Vault.Token)
	out.DevServer.Secret = mask(out.DevServer.Secret)
	if u, err := url.Parse(out.Store.Redis.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			out.Store.Redis.URL = u.String()
		}
	}
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	v := viper.New()

	v.Set("api.url", cfg.API.URL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("store.backend", cfg.Store.Backend)
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.redis.url", cfg.Store.Redis.URL)
	v.Set("store.redis.key", cfg.Store.Redis.Key)
	v.Set("store.vault.address", cfg.Store.Vault.Address)
	v.Set("store.vault.mount", cfg.Store.Vault.Mount)
	v.Set("store.vault.path", cfg.Store.Vault.Path)
	if cfg.Store.Vault.Namespace != "" {
		v.Set("store.vault.namespace", cfg.Store.Vault.Namespace)
	}
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("telemetry.enabled", cfg.Telemetry.Enabled)
	v.Set("telemetry.endpoint", cfg.Telemetry.Endpoint)
	v.Set("telemetry.sample_rate", cfg.Telemetry.SampleRate)
	v.Set("devserver.addr", cfg.DevServer.Addr)
	v.Set("devserver.token_ttl", cfg.DevServer.TokenTTL.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeConfigSaveFailed, "failed to create config directory", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrap(errors.ErrCodeConfigSaveFailed, fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
