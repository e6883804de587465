// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCodeCommand(app *App) *cobra.Command {
	var resolveHashes bool

	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Print the nix expression for the driver farm",
		Long: `Print the nix expression for the driver farm.

Without --resolve-hashes the NVIDIA expression carries a placeholder hash.
With it, the hash is taken from the hash store or discovered by a probe build.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			d, err := app.pickDriver()
			if err != nil {
				return err
			}
			o := app.orchestrator()
			expr, err := o.Descriptor(ctx, d, resolveHashes, app.flags.quiet)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, strings.TrimRight(expr, "\n"))
			return nil
		}),
	}
	codeCmd.Flags().BoolVar(&resolveHashes, "resolve-hashes", false, "substitute the real NVIDIA download hash")
	return codeCmd
}

func newBuildCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the driver farm and print its store path",
		Long: `Build the driver farm and print its store path.

The result is not pinned and /run/opengl-driver is left untouched; use
'nix-opengl-driver sync' to activate it.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			d, err := app.pickDriver()
			if err != nil {
				return err
			}
			o := app.orchestrator()
			path, err := o.Build(ctx, d, app.flags.quiet)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		}),
	}
}

func newSyncCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Build the driver farm, pin it and record it as active",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			d, err := app.pickDriver()
			if err != nil {
				return err
			}
			s := app.syncer()
			st, err := s.Sync(ctx, d, app.flags.quiet)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Synced: %s\n", st.Active)
			return nil
		}),
	}
}
