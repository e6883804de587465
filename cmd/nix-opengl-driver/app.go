// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/config"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/farm"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/hashcache"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/hostcmd"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/lifecycle"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/nix"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/state"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: all Cobra command handlers receive an App reference and build
	// the components they need through it, after prepare has loaded the configuration.
	App struct {
		Config      ConfigProvider
		execCommand hostcmd.ExecCommandFunc
		executable  lifecycle.ExecutableFunc
		euid        func() int
		stdout      io.Writer
		stderr      io.Writer

		flags  globalFlags
		cfg    *config.Config
		logger *log.Logger
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp. Tests supply fakes to isolate
	// the host (external binaries, executable path, privilege level).
	Dependencies struct {
		Config      ConfigProvider
		ExecCommand hostcmd.ExecCommandFunc
		Executable  lifecycle.ExecutableFunc
		EUID        func() int
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// globalFlags are the persistent flags shared by every command.
	globalFlags struct {
		quiet       bool
		verbose     bool
		configPath  string
		forceMesa   bool
		forceNvidia string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Executable == nil {
		deps.Executable = os.Executable
	}
	if deps.EUID == nil {
		deps.EUID = os.Geteuid
	}

	app := &App{
		Config:      deps.Config,
		execCommand: deps.ExecCommand,
		executable:  deps.Executable,
		euid:        deps.EUID,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}
	app.logger = app.newLogger(false, false)
	return app
}

// prepare loads the configuration and builds the logger. Flags win over
// the ui section of the config file.
func (a *App) prepare(ctx context.Context) error {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.flags.quiet = a.flags.quiet || cfg.UI.Quiet
	a.flags.verbose = a.flags.verbose || cfg.UI.Verbose
	a.logger = a.newLogger(a.flags.quiet, a.flags.verbose)
	a.logger.Debug("configuration loaded", "state_dir", cfg.Paths.StateDir, "gcroot_dir", cfg.Paths.GCRootDir)
	return nil
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

func (a *App) newLogger(quiet, verbose bool) *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "nix-opengl-driver"})
	switch {
	case verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.WarnLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

func (a *App) runner() *hostcmd.Runner {
	opts := []hostcmd.Option{hostcmd.WithLogger(a.logger)}
	if a.execCommand != nil {
		opts = append(opts, hostcmd.WithExecCommand(a.execCommand))
	}
	return hostcmd.New(opts...)
}

// pickDriver applies --force-mesa/--force-nvidia, falling back to detection.
func (a *App) pickDriver() (driver.Driver, error) {
	override := driver.Override{ForceMesa: a.flags.forceMesa, NvidiaVersion: a.flags.forceNvidia}
	d, err := driver.NewDetector(a.cfg.Paths.NvidiaVersionFile).Pick(override)
	if err != nil {
		return driver.Driver{}, err
	}
	a.logger.Debug("driver selected", "driver", d.Describe(), "override", override.IsSet())
	return d, nil
}

func (a *App) stateStore() *state.Store {
	return state.New(a.cfg.Paths.StateDir, state.WithLogger(a.logger))
}

// hashCache resolves the authoritative cache location for this process once
// and loads it.
func (a *App) hashCache() (*hashcache.Cache, error) {
	loc, err := hashcache.ResolveLocation(hashcache.LocationOptions{
		EUID:      a.euid(),
		GlobalDir: a.cfg.Paths.StateDir,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("hash store location", "path", loc.Path, "global", loc.Global)
	return hashcache.Load(loc, a.logger)
}

func (a *App) nixStore() *nix.Store {
	return nix.NewStore(a.runner(), a.cfg.Tools.NixStore)
}

func (a *App) orchestrator() *farm.Orchestrator {
	builder := nix.NewBuilder(a.runner(),
		nix.WithBinary(a.cfg.Tools.Nix),
		nix.WithOutput(a.stdout, a.stderr),
		nix.WithLogger(a.logger),
	)
	resolver := farm.NewLazyResolver(builder, func() (farm.HashCache, error) {
		return a.hashCache()
	}, farm.WithLogger(a.logger))
	return farm.NewOrchestrator(resolver, builder, farm.WithLogger(a.logger))
}

func (a *App) syncer() *farm.Syncer {
	return farm.NewSyncer(a.orchestrator(), a.nixStore(), a.stateStore(), a.lifecycle().CurrentRoot(), farm.WithLogger(a.logger))
}

func (a *App) lifecycle() *lifecycle.Manager {
	paths := lifecycle.Paths{
		GCRootDir:      a.cfg.Paths.GCRootDir,
		RuntimeSymlink: a.cfg.Paths.RuntimeSymlink,
		TmpfilesRule:   a.cfg.Paths.TmpfilesRule,
		ServiceUnit:    a.cfg.Paths.ServiceUnit,
		StoreDir:       a.cfg.Paths.StoreDir,
		StateFiles:     a.stateStore().Paths(),
	}
	system := lifecycle.NewSystemd(a.runner(), a.cfg.Tools.Systemctl, a.cfg.Tools.SystemdTmpfiles)
	return lifecycle.New(paths, system, a.nixStore(),
		lifecycle.WithExecutable(a.executable),
		lifecycle.WithLogger(a.logger),
	)
}
