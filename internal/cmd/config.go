package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/safekart/safekart/internal/config"
	"github.com/safekart/safekart/internal/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
		Long: `Inspect and create the SafeKart configuration.

Settings are read from ~/.safekart/config.yaml (or --config) and can be
overridden with SAFEKART_* environment variables, e.g. SAFEKART_API_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	configCmd.AddCommand(
		newConfigViewCmd(a),
		newConfigPathCmd(a),
		newConfigInitCmd(a),
	)
	return configCmd
}

func newConfigViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cc
			redacted := cc.Config.Redacted()
			if cc.Format != "text" {
				return cc.Output(redacted)
			}

			data, err := yaml.Marshal(redacted)
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			source := cc.Config.File
			if source == "" {
				source = "defaults"
			}
			_, err = fmt.Fprintf(cc.out, "# source: %s\n%s", source, data)
			return err
		},
	}
}

// configPath is where `config init` writes and `config path` points.
func (a *app) configPath() (string, error) {
	if a.flags.configFile != "" {
		return a.flags.configFile, nil
	}
	if f := a.cc.Config.File; f != "" {
		return f, nil
	}
	return config.DefaultFile()
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file location",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.cc.out, path)
			return err
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the default settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeConfigSaveFailed, fmt.Sprintf("%s already exists", path)).
					WithSuggestion("Use --force to overwrite it")
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			a.cc.Logger.Info("Configuration written", "path", path)
			return a.cc.Output(noticef("Wrote %s", path))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
