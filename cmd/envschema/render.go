// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dcoupld/envschema/internal/config"
	"github.com/dcoupld/envschema/pkg/envschema"
)

var errMissingSchema = errors.New("missing required option --schema")

type (
	// reporter writes the outcomes of one run in the selected format.
	reporter struct {
		stdout    io.Writer
		stderr    io.Writer
		locator   string
		format    config.OutputFormat
		keepGoing bool
		verbose   bool
		logger    *log.Logger
	}

	// runReport is the document printed by the json and yaml formats.
	runReport struct {
		Schema   string              `json:"schema" yaml:"schema"`
		Success  bool                `json:"success" yaml:"success"`
		Outcomes []envschema.Outcome `json:"outcomes" yaml:"outcomes"`
		// Error is set when the whole run failed, e.g. the schema could not be loaded.
		Error *envschema.Error `json:"error,omitempty" yaml:"error,omitempty"`
	}
)

func newReporter(cmd *cobra.Command, s settings, logger *log.Logger) *reporter {
	return &reporter{
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
		locator:   s.schema,
		format:    s.format,
		keepGoing: s.keepGoing,
		verbose:   s.verbose,
		logger:    logger,
	}
}

// report renders the outcomes and reports whether anything failed.
func (r *reporter) report(outcomes []envschema.Outcome, runErr error) bool {
	switch r.format {
	case config.OutputJSON, config.OutputYAML:
		return r.structured(outcomes, runErr)
	default:
		return r.text(outcomes, runErr)
	}
}

// text prints one line per conforming file and an error block per failure.
// Unless keepGoing is set, it stops at the first failure.
func (r *reporter) text(outcomes []envschema.Outcome, runErr error) bool {
	failed := false
	for _, o := range outcomes {
		switch {
		case o.Success:
			fmt.Fprintf(r.stdout, "%s Success. The env variables in \"%s\" conforms to schema in \"%s\".\n",
				infoTag, o.EnvFileFullPath, r.locator)
		case o.Err != nil:
			r.failure(o.Err)
			failed = true
			if !r.keepGoing {
				return true
			}
		default:
			// Never validated: the schema could not be loaded.
			if runErr != nil {
				r.failure(runErr)
			}
			return true
		}
	}
	return failed || runErr != nil
}

// failure prints the error block for err: a header line followed by one
// bullet per field error.
func (r *reporter) failure(err error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", errorTag, err.Error())

	var e *envschema.Error
	var kind envschema.Kind
	if errors.As(err, &e) {
		kind = e.Kind
		if len(e.Fields) > 0 {
			sb.WriteString("The following errors were encountered:\n")
			for _, f := range e.Fields {
				fmt.Fprintf(&sb, " %s %s\n", bulletStyle.Render("-"), f.String())
			}
		}
	}

	renderServiceError(r.stderr, newServiceError(err, issueFor(kind), sb.String()), r.verbose, r.logger)
}

// structured prints every outcome as one JSON or YAML document on stdout.
func (r *reporter) structured(outcomes []envschema.Outcome, runErr error) bool {
	rep := runReport{
		Schema:   r.locator,
		Success:  runErr == nil,
		Outcomes: outcomes,
	}
	if fatal(outcomes, runErr) {
		var e *envschema.Error
		if errors.As(runErr, &e) {
			rep.Error = e
		} else {
			rep.Error = &envschema.Error{Kind: envschema.KindSchemaLoad, Message: runErr.Error()}
		}
	}

	var err error
	if r.format == config.OutputYAML {
		err = writeYAML(r.stdout, rep)
	} else {
		err = writeJSON(r.stdout, rep)
	}
	if err != nil {
		r.logger.Error("failed to write report", "format", r.format, "error", err)
		return true
	}
	return !rep.Success
}

// fatal reports whether runErr stopped the run before every file was validated.
func fatal(outcomes []envschema.Outcome, runErr error) bool {
	if runErr == nil {
		return false
	}
	for _, o := range outcomes {
		if !o.Success && o.Err == nil {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
