// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the detected driver and the last sync",
		Args:  cobra.NoArgs,
		RunE:  app.run(app.status),
	}
}

func newDriverCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "driver",
		Short: "Print the detected (or overridden) driver",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			d, err := app.pickDriver()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, d)
			return nil
		}),
	}
}

func newStateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the raw sync state",
		Long: `Print the raw sync state file.

When the primary file cannot be read the backup generation is printed
instead. Exits non-zero when neither exists.`,
		Args: cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			store := app.stateStore()
			snap, ok := store.Raw()
			if !ok {
				return fmt.Errorf("no sync state at %s or %s", store.Path(), store.BackupPath())
			}
			if snap.IsBackup {
				fmt.Fprintln(app.stderr, WarningStyle.Render("primary state missing, reading backup ")+snap.Path)
			}
			fmt.Fprintln(app.stdout, string(snap.Data))
			return nil
		}),
	}
}

func newHashStoreCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-store",
		Short: "Print the cached NVIDIA driver hashes",
		Args:  cobra.NoArgs,
		RunE: app.run(func(_ context.Context, _ *cobra.Command, _ []string) error {
			cache, err := app.hashCache()
			if err != nil {
				return err
			}
			out, err := cache.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, string(out))
			return nil
		}),
	}
}

func (a *App) status(_ context.Context, _ *cobra.Command, _ []string) error {
	d, err := a.pickDriver()
	if err != nil {
		return err
	}
	st, found, err := a.stateStore().Load()
	if err != nil {
		return err
	}

	label := func(name string) string { return CmdStyle.Render(name + ":") }

	fmt.Fprintf(a.stdout, "%s %s\n", label("Detected driver"), SuccessStyle.Render(d.String()))
	if !found {
		fmt.Fprintf(a.stdout, "%s %s\n", label("Active driver"),
			SubtitleStyle.Render("<none> (run `nix-opengl-driver sync`)"))
		return nil
	}
	fmt.Fprintf(a.stdout, "%s %s\n", label("Active driver"), SuccessStyle.Render(st.Detected))
	fmt.Fprintf(a.stdout, "%s %s\n", label("Active path"), st.Active)
	fmt.Fprintf(a.stdout, "%s %s\n", label("Last sync"), st.LastSync)
	if st.Detected != d.Describe() {
		fmt.Fprintln(a.stdout, WarningStyle.Render("Active farm does not match the detected driver; run `nix-opengl-driver sync`"))
	}
	return nil
}
