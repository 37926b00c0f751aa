// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/dcoupld/envschema/internal/issue"
	"github.com/dcoupld/envschema/pkg/envschema"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. When the CLI layer receives a ServiceError, it renders the
// styled error message (if present) before the issue help text.
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

// issueFor maps a validation failure to its help text.
func issueFor(kind envschema.Kind) issue.Id {
	switch kind {
	case envschema.KindInvalidSchemaArgument:
		return issue.SchemaArgumentMissingId
	case envschema.KindMissingEnvFile:
		return issue.EnvFileNotFoundId
	case envschema.KindInvalidEnvFile:
		return issue.InvalidEnvFileId
	case envschema.KindInvalidSource, envschema.KindUnsupportedExtension, envschema.KindFileNotFound,
		envschema.KindNetworkError, envschema.KindParseError, envschema.KindSchemaLoad:
		return issue.SchemaLoadFailedId
	case envschema.KindInvalidSchemaDocument:
		return issue.InvalidSchemaDocumentId
	case envschema.KindSchemaMismatch:
		return issue.SchemaMismatchId
	default:
		return 0
	}
}

// renderServiceError prints the styled message and, when withHelp is set,
// the issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, withHelp bool, logger *log.Logger) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if !withHelp || svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("")
		if renderErr != nil {
			logger.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}
