package cmd

import (
	"github.com/spf13/cobra"

	"github.com/safekart/safekart/internal/ux"
	"github.com/safekart/safekart/internal/version"
)

type versionView struct {
	version.Info `yaml:",inline"`
	verbose      bool
}

func (v versionView) RenderText(ux.Styles) string {
	if v.verbose {
		return v.String()
	}
	return "safekart " + v.Short()
}

func newVersionCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// works without a readable config file
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ux.NewFormatter(a.flags.format, &ux.FormatterOptions{
				Writer:  cmd.OutOrStdout(),
				NoColor: a.flags.noColor,
			})
			if err != nil {
				return err
			}
			return f.Format(versionView{Info: version.GetInfo(), verbose: verbose})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include commit, build date and platform")
	return cmd
}
