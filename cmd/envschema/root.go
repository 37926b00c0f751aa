// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootOptions holds the raw flag values. Flags the user did not set are
// filled from the configuration.
type rootOptions struct {
	schema       string
	envFiles     []string
	format       string
	keepGoing    bool
	timeout      string
	userAgent    string
	strict       bool
	assertFormat bool
	draft        string
	verbose      bool
	configPath   string
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newRootCommand creates the envschema command tree.
func newRootCommand(app *App) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "envschema [env-file...]",
		Short: "Validate env files against a JSON Schema",
		Long: TitleStyle.Render("envschema") + SubtitleStyle.Render(" - Validate env files against a JSON Schema") + `

envschema reads one or more dotenv files and checks the variables they
define against a JSON Schema loaded from a local .json file or an http(s)
URL. The process environment is never read or modified.

` + SubtitleStyle.Render("Examples:") + `
  envschema -s env.schema.json                    Validate ./.env
  envschema -s env.schema.json .env .env.local    Validate two files
  envschema -s https://example.com/schema.json --env .env.production
  envschema -s env.schema.json --format json      Print the outcomes as JSON
  envschema config show                           Show current configuration`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.settle(cmd, runValidate(cmd, app, opts, args))
		},
	}

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.schema, "schema", "s", "", "JSON Schema file (.json) or http(s) URL")
	flags.StringArrayVarP(&opts.envFiles, "env", "e", nil, "env file to validate (repeatable, default .env)")
	flags.StringVar(&opts.format, "format", "", "output format: text, json or yaml")
	flags.BoolVar(&opts.keepGoing, "keep-going", false, "report every env file instead of stopping at the first failure")
	flags.StringVar(&opts.timeout, "timeout", "", "HTTP timeout for URL schemas, e.g. 10s")
	flags.StringVar(&opts.userAgent, "user-agent", "", "User-Agent header for URL schemas")
	flags.BoolVar(&opts.strict, "strict", true, "reject schemas with unknown keywords")
	flags.BoolVar(&opts.assertFormat, "assert-format", true, "validate the \"format\" keyword")
	flags.StringVar(&opts.draft, "draft", "", "draft for schemas without $schema: draft4, draft6, draft7, draft2019-09, draft2020-12")

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging and detailed help on errors")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is <config dir>/envschema/config.cue, then ./.envschema.cue)")

	rootCmd.AddCommand(newConfigCommand(app, opts))

	return rootCmd
}

// settle turns an already-reported failure into a silent exit code so fang
// does not print it a second time.
func (a *App) settle(cmd *cobra.Command, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		if exitErr.Err == nil {
			a.exitCode = exitErr.Code
			return nil
		}
	}
	return err
}

// Execute builds the command tree and runs it. This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(exitFailure)
	}

	os.Exit(execute(context.Background(), app, os.Args[1:]))
}

// execute runs the command tree with args and returns the process exit code.
func execute(ctx context.Context, app *App, args []string) int {
	app.exitCode = 0

	rootCmd := newRootCommand(app)
	rootCmd.SetArgs(args)

	// fang overrides rootCmd.Version, so the version is passed explicitly.
	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return exitFailure
	}
	return app.exitCode
}

// handleError prints errors that were not already reported by a command.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.StyledMessage != "" {
		fmt.Fprint(w, svcErr.StyledMessage)
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
