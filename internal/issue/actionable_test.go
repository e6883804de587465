// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "sync driver farm"},
			expected: "failed to sync driver farm",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "write service unit",
				Resource:  "/etc/systemd/system/nix-opengl-driver.service",
			},
			expected: "failed to write service unit: /etc/systemd/system/nix-opengl-driver.service",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "load configuration",
				Resource:  "/etc/nix-opengl-driver/config.cue",
				Cause:     errors.New("paths.state_dir: invalid value"),
			},
			expected: "failed to load configuration: /etc/nix-opengl-driver/config.cue: paths.state_dir: invalid value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	err := NewErrorContext().
		WithOperation("remove tmpfiles rule").
		Wrap(&fs.PathError{Op: "remove", Path: "/etc/tmpfiles.d/x.conf", Err: fs.ErrPermission}).
		BuildError()

	if !errors.Is(err, fs.ErrPermission) {
		t.Error("errors.Is should see through ActionableError to the cause")
	}
	var pathErr *fs.PathError
	if !errors.As(err, &pathErr) || pathErr.Path != "/etc/tmpfiles.d/x.conf" {
		t.Errorf("errors.As(*fs.PathError) = %v", pathErr)
	}
}

func TestActionableError_Format(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &ActionableError{
		Operation:   "enable service",
		Suggestions: []string{"Run as root", "Check systemctl status"},
		Cause:       &wrapped{msg: "systemctl enable", err: inner},
	}

	short := err.Format(false)
	if !strings.Contains(short, "\n  • Run as root") || !strings.Contains(short, "\n  • Check systemctl status") {
		t.Errorf("Format(false) missing suggestions:\n%s", short)
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) should not include the error chain")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:") || !strings.Contains(verbose, "2. exit status 1") {
		t.Errorf("Format(true) missing the error chain:\n%s", verbose)
	}
}

func TestErrorContext_Build(t *testing.T) {
	if NewErrorContext().WithResource("/x").Build() != nil {
		t.Error("Build() without an operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without an operation should return a nil error")
	}

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("build driver farm").
		WithResource("nvidia 570.133.07").
		WithSuggestion("Run with --verbose").
		WithIssue(BuildFailedId).
		Wrap(cause).
		Build()

	if ae.Operation != "build driver farm" || ae.Resource != "nvidia 570.133.07" {
		t.Errorf("unexpected context: %+v", ae)
	}
	if len(ae.Suggestions) == 0 || ae.Suggestions[0] != "Run with --verbose" {
		t.Errorf("Suggestions = %v", ae.Suggestions)
	}
	if ae.Issue != BuildFailedId {
		t.Errorf("Issue = %d, want %d", ae.Issue, BuildFailedId)
	}
	if !errors.Is(ae, cause) {
		t.Error("Build() should keep the cause")
	}
}

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
