// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `nix-opengl-driver config` command tree.
// Its subcommands load configuration themselves, so a broken config file
// can still be located and diagnosed.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect nix-opengl-driver configuration",
		Long: `Inspect nix-opengl-driver configuration.

Configuration is read from the first file that exists:
  - the --config flag
  - $XDG_CONFIG_HOME/nix-opengl-driver/config.cue (default ~/.config)
  - /etc/nix-opengl-driver/config.cue

Every key can be overridden with a NIX_OPENGL_DRIVER_ environment
variable, e.g. NIX_OPENGL_DRIVER_PATHS_STATE_DIR.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE:  app.run(app.showConfig),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			path, err := config.Locate(app.loadOptions())
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(using defaults)"))
				return nil
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		}),
	})

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context, _ *cobra.Command, _ []string) error {
	if err := a.prepare(ctx); err != nil {
		return err
	}
	path, err := config.Locate(a.loadOptions())
	if err != nil {
		return err
	}
	if path == "" {
		path = SubtitleStyle.Render("(using defaults)")
	}

	fmt.Fprintln(a.stderr, TitleStyle.Render("Current Configuration"))
	fmt.Fprintf(a.stderr, "%s: %s\n\n", CmdStyle.Render("Config file"), path)
	fmt.Fprint(a.stdout, config.GenerateCUE(a.cfg))
	return nil
}
