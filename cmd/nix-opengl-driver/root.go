// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nix-opengl-driver",
		Short: "Keep /run/opengl-driver in sync with the running GPU driver",
		Long: TitleStyle.Render("nix-opengl-driver") + SubtitleStyle.Render(" - GPU driver farm for Nix on non-NixOS systems") + `

nix-opengl-driver detects whether the proprietary NVIDIA driver or Mesa is
active, builds a matching symlink farm of driver libraries with nix, pins it
as a GC root and points /run/opengl-driver at it at every boot.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Build and activate the farm:      sudo nix-opengl-driver sync
  2. Install the boot-time integration: sudo nix-opengl-driver install

` + SubtitleStyle.Render("Examples:") + `
  nix-opengl-driver status                         Compare detected and active drivers
  nix-opengl-driver --force-nvidia 570.133.07 code --resolve-hashes
  nix-opengl-driver --quiet sync                   Sync without build output`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.prepare(cmd.Context()); err != nil {
				return app.fail(cmd, err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.quiet, "quiet", "q", false, "suppress build output and informational logs")
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/nix-opengl-driver/config.cue)")
	flags.BoolVar(&app.flags.forceMesa, "force-mesa", false, "use Mesa regardless of the detected driver")
	flags.StringVar(&app.flags.forceNvidia, "force-nvidia", "", "use the NVIDIA driver `VERSION` regardless of detection")
	rootCmd.MarkFlagsMutuallyExclusive("force-mesa", "force-nvidia")

	rootCmd.AddCommand(
		newStatusCommand(app),
		newDriverCommand(app),
		newCodeCommand(app),
		newBuildCommand(app),
		newSyncCommand(app),
		newTmpfilesCommand(app),
		newServiceCommand(app),
		newInstallCommand(app),
		newUninstallCommand(app),
		newStateCommand(app),
		newHashStoreCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the command tree, runs it and exits with its status.
// This is called by main.main().
func Execute() {
	os.Exit(executeCLI())
}

// executeCLI runs the command tree and returns the process exit code.
func executeCLI() int {
	app := NewApp(Dependencies{})

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

// fail renders err with its catalog entry and returns an ExitError.
func (a *App) fail(cmd *cobra.Command, err error) error {
	issueID, styled := classifyError(err, a.flags.verbose)
	renderServiceError(a.stderr, a.logger, newServiceError(err, issueID, styled))
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1}
}

// run adapts an App handler to a cobra RunE, routing failures through fail.
func (a *App) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd.Context(), cmd, args); err != nil {
			return a.fail(cmd, err)
		}
		return nil
	}
}
