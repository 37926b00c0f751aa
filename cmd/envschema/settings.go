// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dcoupld/envschema/internal/config"
	"github.com/dcoupld/envschema/internal/issue"
	"github.com/dcoupld/envschema/pkg/envschema"
)

// settings is the effective configuration of one validation run.
type settings struct {
	schema       string
	envFiles     []string
	format       config.OutputFormat
	keepGoing    bool
	timeout      time.Duration
	userAgent    string
	strict       bool
	assertFormat bool
	draft        *jsonschema.Draft
	verbose      bool
}

// resolveSettings merges flags over cfg. changed reports whether a flag was
// set on the command line. Positional env files come after --env ones.
func resolveSettings(changed func(string) bool, opts *rootOptions, args []string, cfg *config.Config) (settings, error) {
	s := settings{
		schema:       cfg.Schema,
		envFiles:     append(append([]string{}, opts.envFiles...), args...),
		format:       cfg.Output.Format,
		keepGoing:    cfg.Validation.KeepGoing,
		userAgent:    cfg.HTTP.UserAgent,
		strict:       cfg.Validation.Strict,
		assertFormat: cfg.Validation.AssertFormat,
		verbose:      cfg.UI.Verbose || opts.verbose,
	}

	if changed("schema") {
		s.schema = opts.schema
	}
	if len(s.envFiles) == 0 {
		s.envFiles = append(s.envFiles, cfg.EnvFiles...)
	}
	if changed("keep-going") {
		s.keepGoing = opts.keepGoing
	}
	if changed("user-agent") {
		s.userAgent = opts.userAgent
	}
	if changed("strict") {
		s.strict = opts.strict
	}
	if changed("assert-format") {
		s.assertFormat = opts.assertFormat
	}

	var errs []error

	if changed("format") {
		s.format = config.OutputFormat(opts.format)
		if valid, fieldErrs := s.format.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}

	timeout := config.HTTPConfig{Timeout: cfg.HTTP.Timeout}
	if changed("timeout") {
		timeout.Timeout = opts.timeout
	}
	d, err := timeout.ParseTimeout()
	if err != nil {
		errs = append(errs, err)
	}
	s.timeout = d

	draftName := cfg.Validation.Draft
	if changed("draft") {
		draftName = opts.draft
	}
	if s.draft, err = envschema.DraftByName(draftName); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return settings{}, errors.Join(errs...)
	}
	return s, nil
}

// newLogger creates the stderr logger. Only warnings are shown unless verbose.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
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

// flagValueError reports an invalid option value.
func flagValueError(err error) *ServiceError {
	return newServiceError(err, issue.InvalidFlagValueId,
		fmt.Sprintf("%s: %s\n", errorTag, err.Error()))
}
