// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dcoupld/envschema/internal/issue"
	"github.com/dcoupld/envschema/internal/retrieve"
	"github.com/dcoupld/envschema/pkg/envschema"
)

// runValidate loads the configuration, validates every env file and renders
// the outcomes. Reported failures come back as an *ExitError with a nil Err.
func runValidate(cmd *cobra.Command, app *App, opts *rootOptions, args []string) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	cfg, _, err := app.Config.Load(ctx, app.loadOptions(opts.configPath))
	if err != nil {
		styled := fmt.Sprintf("%s: %s\n", errorTag, formatErrorForDisplay(err, opts.verbose))
		renderServiceError(stderr, newServiceError(err, issue.ConfigLoadFailedId, styled), opts.verbose, newLogger(stderr, opts.verbose))
		return &ExitError{Code: exitFailure}
	}

	s, err := resolveSettings(cmd.Flags().Changed, opts, args, cfg)
	if err != nil {
		renderServiceError(stderr, flagValueError(err), true, newLogger(stderr, opts.verbose))
		return &ExitError{Code: exitUsage}
	}

	logger := newLogger(stderr, s.verbose)

	if s.schema == "" {
		fmt.Fprintf(stderr, "%s Missing required option --schema\n\n", warningTag)
		if helpErr := cmd.Help(); helpErr != nil {
			logger.Warn("failed to print help", "error", helpErr)
		}
		if s.verbose {
			renderServiceError(stderr, newServiceError(errMissingSchema, issue.SchemaArgumentMissingId, ""), true, logger)
		}
		return &ExitError{Code: exitUsage}
	}

	svc, err := envschema.New(envschema.Reference(s.schema), app.serviceOptions(s, logger)...)
	if err != nil {
		r := newReporter(cmd, s, logger)
		r.failure(err)
		return &ExitError{Code: exitFailure}
	}

	logger.Debug("validating", "schema", s.schema, "files", len(s.envFiles))
	outcomes, runErr := svc.Run(ctx, s.envFiles...)

	r := newReporter(cmd, s, logger)
	if failed := r.report(outcomes, runErr); failed {
		return &ExitError{Code: exitFailure}
	}
	return nil
}

// serviceOptions builds the validation service options for s.
func (a *App) serviceOptions(s settings, logger *log.Logger) []envschema.Option {
	retriever := a.Retriever
	if retriever == nil {
		ropts := []retrieve.Option{
			retrieve.WithHTTPClient(&http.Client{Timeout: s.timeout}),
			retrieve.WithWorkingDir(a.workDir),
		}
		if s.userAgent != "" {
			ropts = append(ropts, retrieve.WithUserAgent(s.userAgent))
		}
		retriever = retrieve.New(ropts...)
	}

	return []envschema.Option{
		envschema.WithWorkingDir(a.workDir),
		envschema.WithRetriever(retriever),
		envschema.WithLogger(logger),
		envschema.WithStrictKeywords(s.strict),
		envschema.WithFormatAssertion(s.assertFormat),
		envschema.WithDraft(s.draft),
	}
}
