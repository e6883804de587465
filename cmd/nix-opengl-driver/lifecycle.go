// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTmpfilesCommand(app *App) *cobra.Command {
	tmpfilesCmd := &cobra.Command{
		Use:   "tmpfiles",
		Short: "Print the tmpfiles.d rule for /run/opengl-driver",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			fmt.Fprint(app.stdout, app.lifecycle().Rule())
			return nil
		}),
	}

	tmpfilesCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the tmpfiles.d rule and apply it now",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			m := app.lifecycle()
			if err := m.InstallRule(ctx); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Installed tmpfiles.d rule and populated %s\n", m.Paths().RuntimeSymlink)
			return nil
		}),
	})

	tmpfilesCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the tmpfiles.d rule",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			if err := app.lifecycle().UninstallRule(); err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, "Uninstalled tmpfiles rule")
			return nil
		}),
	})

	return tmpfilesCmd
}

func newServiceCommand(app *App) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Print the boot-time sync service unit",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			unit, loc, err := app.lifecycle().ServiceUnit()
			if err != nil {
				return err
			}
			if !loc.InStore() {
				app.logger.Warn("tool is not in the nix store; the unit invokes it by its current path", "path", loc.Path)
			}
			fmt.Fprintln(app.stdout, strings.TrimRight(unit, "\n"))
			return nil
		}),
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install and enable the boot-time sync service",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := app.lifecycle().InstallService(ctx); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Installed %s\n", app.cfg.Paths.ServiceUnit)
			return nil
		}),
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Stop, disable and remove the boot-time sync service",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := app.lifecycle().UninstallService(ctx); err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, "Uninstalled nix-opengl-driver.service")
			return nil
		}),
	})

	return serviceCmd
}

func newInstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the tmpfiles.d rule and the boot-time sync service",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			m := app.lifecycle()
			if err := m.InstallArtifacts(ctx); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Installed tmpfiles.d rule, service file and populated %s\n", m.Paths().RuntimeSymlink)
			return nil
		}),
	}
}

func newUninstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove GC roots, sync state, the tmpfiles.d rule and the service",
		Args:  cobra.NoArgs,
		RunE: app.run(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			if err := app.lifecycle().UninstallArtifacts(ctx); err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, "Uninstalled gc-root, state, tmpfiles rule and service")
			return nil
		}),
	}
}
