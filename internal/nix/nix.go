// SPDX-License-Identifier: MPL-2.0

package nix

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/hostcmd"

	"github.com/charmbracelet/log"
)

const (
	// DefaultNixBinary is the build tool binary.
	DefaultNixBinary = "nix"
	// DefaultNixStoreBinary pins store paths as GC roots.
	DefaultNixStoreBinary = "nix-store"
	// ResultLink is the out-link the build creates inside its working directory.
	ResultLink = "result"
)

type (
	// Outcome is what a finished build reports: its exit status and the full
	// diagnostic (stderr) text.
	Outcome struct {
		ExitCode    int
		Diagnostics string
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)

	// Builder invokes `nix build` on a descriptor directory.
	Builder struct {
		runner *hostcmd.Runner
		binary string
		stdout io.Writer
		stderr io.Writer
		logger *log.Logger
	}

	// Store pins build outputs against garbage collection.
	Store struct {
		runner *hostcmd.Runner
		binary string
	}
)

// Succeeded reports whether the build exited zero.
func (o Outcome) Succeeded() bool { return o.ExitCode == 0 }

// String renders an Outcome for debug logs.
func (o Outcome) String() string {
	return fmt.Sprintf("exit %d, %d bytes of diagnostics", o.ExitCode, len(o.Diagnostics))
}

// WithBinary overrides the nix binary.
func WithBinary(path string) BuilderOption {
	return func(b *Builder) {
		if path != "" {
			b.binary = path
		}
	}
}

// WithOutput sets where forwarded build output goes (defaults to the process stdio).
func WithOutput(stdout, stderr io.Writer) BuilderOption {
	return func(b *Builder) {
		b.stdout = stdout
		b.stderr = stderr
	}
}

// WithLogger sets the builder's logger.
func WithLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a Builder running commands through runner.
func NewBuilder(runner *hostcmd.Runner, opts ...BuilderOption) *Builder {
	b := &Builder{
		runner: runner,
		binary: DefaultNixBinary,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs `nix build -f <dir> -o result` inside dir and blocks until it
// exits. Diagnostics are read line by line: each line is forwarded to the
// builder's stderr (unless quiet) and retained for the returned Outcome. A
// non-zero exit is reported through Outcome, not as an error; errors are
// reserved for failures to run the tool at all.
func (b *Builder) Build(ctx context.Context, dir string, quiet bool) (Outcome, error) {
	cmd := b.runner.Command(ctx, b.binary, "build", "-f", dir, "-o", ResultLink)
	cmd.Dir = dir
	if quiet {
		cmd.Stdout = io.Discard
	} else {
		cmd.Stdout = b.stdout
	}

	pipe, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("attaching to %s stderr: %w", b.binary, err)
	}
	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("spawning `%s build`: %w", b.binary, err)
	}

	forward := b.stderr
	if quiet {
		forward = io.Discard
	}
	diagnostics, readErr := tee(pipe, forward)

	waitErr := cmd.Wait()
	if readErr != nil {
		return Outcome{}, fmt.Errorf("reading %s diagnostics: %w", b.binary, readErr)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return Outcome{ExitCode: 0, Diagnostics: diagnostics}, nil
	case errors.As(waitErr, &exitErr):
		b.logger.Debug("build exited non-zero", "dir", dir, "status", exitErr.ExitCode())
		return Outcome{ExitCode: exitErr.ExitCode(), Diagnostics: diagnostics}, nil
	default:
		return Outcome{}, fmt.Errorf("waiting on `%s build`: %w", b.binary, waitErr)
	}
}

// tee copies r line by line into both forward and the returned buffer.
func tee(r io.Reader, forward io.Writer) (string, error) {
	var buf strings.Builder
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			// Forwarding is best effort; the buffer is what parsing relies on.
			_, _ = io.WriteString(forward, line)
			buf.WriteString(line)
		}
		if errors.Is(err, io.EOF) {
			return buf.String(), nil
		}
		if err != nil {
			return buf.String(), err
		}
	}
}

// NewStore creates a Store using the nix-store binary (DefaultNixStoreBinary when empty).
func NewStore(runner *hostcmd.Runner, binary string) *Store {
	if binary == "" {
		binary = DefaultNixStoreBinary
	}
	return &Store{runner: runner, binary: binary}
}

// AddRoot registers link as an indirect GC root for target, creating or
// replacing the link.
func (s *Store) AddRoot(ctx context.Context, link, target string) error {
	if _, err := s.runner.Output(ctx, s.binary, "--add-root", link, "--indirect", "--realise", target); err != nil {
		return fmt.Errorf("pinning %s as GC root %s: %w", target, link, err)
	}
	return nil
}
