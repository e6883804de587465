// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"testing"
)

const (
	envWantHelper    = "GO_WANT_HELPER_PROCESS"
	envExitCode      = "GO_HELPER_EXIT_CODE"
	envStdout        = "GO_HELPER_STDOUT"
	envStderr        = "GO_HELPER_STDERR"
	envSymlinkName   = "GO_HELPER_SYMLINK_NAME"
	envSymlinkTarget = "GO_HELPER_SYMLINK_TARGET"
)

type (
	// MockCommandRecorder captures arguments passed to exec.Command for verification.
	// It uses the TestHelperProcess pattern to simulate command execution: every
	// test package using it must define
	//
	//	func TestHelperProcess(t *testing.T) { testutil.HelperProcess(t) }
	MockCommandRecorder struct {
		// Invocations records each call to the mock exec.Command
		Invocations []MockInvocation
		// Responses are consumed in order, one per invocation. When exhausted,
		// Default is used.
		Responses []MockResponse
		// Default is the response used once Responses is exhausted.
		Default MockResponse
	}

	// MockInvocation represents a single invocation of exec.Command.
	MockInvocation struct {
		// Name is the command name (e.g., "nix", "systemctl")
		Name string
		// Args are the arguments passed to the command
		Args []string
	}

	// MockResponse describes what the helper process does when invoked.
	MockResponse struct {
		ExitCode int
		Stdout   string
		Stderr   string
		// SymlinkName, when set, is created in the command's working directory
		// pointing at SymlinkTarget (used to fake `nix build -o result`).
		SymlinkName   string
		SymlinkTarget string
	}
)

// NewMockCommandRecorder creates a new recorder with default settings (success, no output).
func NewMockCommandRecorder() *MockCommandRecorder {
	return &MockCommandRecorder{Invocations: make([]MockInvocation, 0)}
}

// ContextCommandFunc returns a function that can replace exec.CommandContext for testing.
// The function records invocations and returns a command that runs TestHelperProcess.
func (m *MockCommandRecorder) ContextCommandFunc(t *testing.T) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.Invocations = append(m.Invocations, MockInvocation{Name: name, Args: args})

		resp := m.Default
		if len(m.Responses) > 0 {
			resp, m.Responses = m.Responses[0], m.Responses[1:]
		}

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			envWantHelper + "=1",
			fmt.Sprintf("%s=%d", envExitCode, resp.ExitCode),
			envStdout + "=" + resp.Stdout,
			envStderr + "=" + resp.Stderr,
			envSymlinkName + "=" + resp.SymlinkName,
			envSymlinkTarget + "=" + resp.SymlinkTarget,
		}
		return cmd
	}
}

// LastInvocation returns the most recent invocation, or nil if none.
func (m *MockCommandRecorder) LastInvocation() *MockInvocation {
	if len(m.Invocations) == 0 {
		return nil
	}
	return &m.Invocations[len(m.Invocations)-1]
}

// CommandLines returns every invocation as "name arg1 arg2 ...".
func (m *MockCommandRecorder) CommandLines() []string {
	lines := make([]string, 0, len(m.Invocations))
	for _, inv := range m.Invocations {
		lines = append(lines, strings.Join(append([]string{inv.Name}, inv.Args...), " "))
	}
	return lines
}

// AssertInvocationCount verifies the number of command invocations.
func (m *MockCommandRecorder) AssertInvocationCount(t *testing.T, expected int) {
	t.Helper()
	if len(m.Invocations) != expected {
		t.Errorf("expected %d invocations, got %d: %v", expected, len(m.Invocations), m.CommandLines())
	}
}

// AssertCommandLines verifies the full ordered list of invocations.
func (m *MockCommandRecorder) AssertCommandLines(t *testing.T, expected ...string) {
	t.Helper()
	if got := m.CommandLines(); !slices.Equal(got, expected) {
		t.Errorf("command lines mismatch\n got: %q\nwant: %q", got, expected)
	}
}

// HelperProcess is the body of each package's TestHelperProcess. It reads the
// scripted response from the environment and exits accordingly. It returns
// immediately when not invoked as a helper.
func HelperProcess(t *testing.T) {
	t.Helper()
	if os.Getenv(envWantHelper) != "1" {
		return
	}

	if name := os.Getenv(envSymlinkName); name != "" {
		if err := os.Symlink(os.Getenv(envSymlinkTarget), name); err != nil {
			fmt.Fprintf(os.Stderr, "helper: %v\n", err)
			os.Exit(98)
		}
	}

	if stdout := os.Getenv(envStdout); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv(envStderr); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	exitCode, err := strconv.Atoi(os.Getenv(envExitCode))
	if err != nil {
		exitCode = 99
	}
	os.Exit(exitCode)
}
