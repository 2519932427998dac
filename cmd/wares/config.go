// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wares-build/wares/internal/config"
)

func newConfigCommand(app *App, root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show wares configuration",
		Long: `Show the effective configuration.

Settings come from, in increasing precedence: built-in defaults, the config
file, the project .env file and WARES_* environment variables.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context(), root, ".")
			if err != nil {
				return app.reportError(err, root.verbose)
			}
			data, err := config.Encode(cfg)
			if err != nil {
				return app.reportError(err, root.verbose)
			}
			if path := app.Config.Path(); path != "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("# "+path))
			}
			fmt.Fprint(app.stdout, string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if root.configPath != "" {
				fmt.Fprintln(app.stdout, root.configPath)
				return nil
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return app.reportError(err, root.verbose)
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName))
			return nil
		},
	})

	return cmd
}
