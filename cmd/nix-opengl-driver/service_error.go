// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"

	"github.com/nix-opengl-driver/nix-opengl-driver/internal/config"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/driver"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/farm"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/hashcache"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/issue"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/lifecycle"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/nix"
	"github.com/nix-opengl-driver/nix-opengl-driver/internal/state"

	"github.com/charmbracelet/log"
)

// issueStyle is the glamour style used for catalog entries.
const issueStyle = "dark"

// ServiceError is an error that carries optional rendering information for
// the CLI layer. When the CLI layer receives a ServiceError, it renders the
// styled error message (if present) before the catalog entry.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
// All construction sites must use this instead of struct literals.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError renders a ServiceError in the CLI layer.
// It prints any styled message first, then the optional issue help section.
func renderServiceError(stderr io.Writer, logger *log.Logger, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(issueStyle)
		if renderErr != nil {
			logger.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyError maps a command failure to an issue catalog ID and returns a
// styled message for CLI rendering. An ActionableError that already names
// its issue wins over the error-chain checks.
func classifyError(err error, verbose bool) (issueID issue.Id, styledMsg string) {
	var (
		ae      *issue.ActionableError
		stepErr *lifecycle.StepError
	)

	switch {
	case errors.As(err, &ae) && ae.Issue != 0:
		issueID = ae.Issue
	case errors.Is(err, driver.ErrConflictingOverride):
		issueID = issue.ConflictingOverrideId
	case errors.Is(err, driver.ErrDetection):
		issueID = issue.DetectionFailedId
	case errors.Is(err, nix.ErrHashDiscovery):
		issueID = issue.HashDiscoveryFailedId
	case errors.Is(err, farm.ErrBuildFailed):
		issueID = issue.BuildFailedId
	case errors.Is(err, state.ErrCorruptState):
		issueID = issue.CorruptStateId
	case errors.Is(err, hashcache.ErrCorrupt):
		issueID = issue.CorruptHashStoreId
	case errors.Is(err, config.ErrInvalidConfig):
		issueID = issue.ConfigLoadFailedId
	case errors.Is(err, fs.ErrPermission):
		issueID = issue.PermissionDeniedId
	case errors.As(err, &stepErr):
		issueID = issue.LifecycleStepFailedId
	case errors.Is(err, exec.ErrNotFound):
		issueID = issue.NixNotFoundId
	case errors.Is(err, farm.ErrPinFailed):
		issueID = issue.GCRootFailedId
	}

	return issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
