// SPDX-License-Identifier: MPL-2.0

package hostcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

// ErrCommandFailed is the sentinel error wrapped by CommandError.
var ErrCommandFailed = errors.New("command failed")

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Runner.
	Option func(*Runner)

	// Runner executes host binaries (nix, nix-store, systemctl, systemd-tmpfiles).
	// Every invocation blocks until the child exits: there is no timeout and
	// cancellation of the caller's context is not propagated to the child.
	Runner struct {
		execCommand ExecCommandFunc
		logger      *log.Logger
	}

	// CommandError describes a host command that started but exited unsuccessfully.
	CommandError struct {
		Name     string
		Args     []string
		ExitCode int
		Output   string
		Err      error
	}
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %s failed", Quote(e.Name, e.Args...))
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit status %d", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrCommandFailed and the underlying exec error.
func (e *CommandError) Unwrap() []error { return []error{ErrCommandFailed, e.Err} }

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(r *Runner) {
		r.execCommand = fn
	}
}

// WithLogger sets the logger used for debug command tracing.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner backed by exec.CommandContext.
func New(opts ...Option) *Runner {
	r := &Runner{
		execCommand: exec.CommandContext,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Command creates an exec.Cmd for name and args. Callers wire stdio themselves.
func (r *Runner) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	r.logger.Debug("running command", "cmd", Quote(name, args...))
	return r.execCommand(context.WithoutCancel(ctx), name, args...)
}

// Run executes a command and returns a *CommandError carrying the combined
// output when it exits non-zero.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.Output(ctx, name, args...)
	return err
}

// Output executes a command and returns its stdout. Stderr is captured and
// attached to the returned *CommandError on failure.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := r.Command(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", newCommandError(name, args, err, stderr.String())
	}
	return stdout.String(), nil
}

// ExitCode extracts the exit status of a finished command error, or -1 when
// the process never ran to completion (e.g. the binary was not found).
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Quote renders name and args as a copy-pasteable shell command line.
func Quote(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}

func newCommandError(name string, args []string, err error, output string) *CommandError {
	return &CommandError{
		Name:     name,
		Args:     args,
		ExitCode: ExitCode(err),
		Output:   output,
		Err:      err,
	}
}
