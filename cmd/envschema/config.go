// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dcoupld/envschema/internal/config"
	"github.com/dcoupld/envschema/internal/issue"
)

// newConfigCommand creates the `envschema config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App, opts *rootOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage envschema configuration",
		Long: `Manage envschema configuration.

Configuration is read from the first file found of:
  - the --config flag
  - Linux: ~/.config/envschema/config.cue
    macOS: ~/Library/Application Support/envschema/config.cue
    Windows: %APPDATA%\envschema\config.cue
  - ./.envschema.cue

ENVSCHEMA_* environment variables override file values, e.g.
ENVSCHEMA_SCHEMA or ENVSCHEMA_OUTPUT_FORMAT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.settle(cmd, showConfig(cmd, app, opts))
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(cmd.OutOrStdout(), app, opts)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.Config.Load(cmd.Context(), app.loadOptions(opts.configPath))
			if err != nil {
				return app.settle(cmd, reportConfigError(cmd, err, opts.verbose))
			}

			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	var force, local bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.OutOrStdout(), app, force, local)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVar(&local, "local", false, "write ./"+config.LocalConfigFileName+" instead of the user config file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func reportConfigError(cmd *cobra.Command, err error, verbose bool) error {
	stderr := cmd.ErrOrStderr()
	styled := fmt.Sprintf("%s: %s\n", errorTag, formatErrorForDisplay(err, verbose))
	renderServiceError(stderr, newServiceError(err, issue.ConfigLoadFailedId, styled), true, newLogger(stderr, verbose))
	return &ExitError{Code: exitFailure}
}

func showConfig(cmd *cobra.Command, app *App, opts *rootOptions) error {
	cfg, path, err := app.Config.Load(cmd.Context(), app.loadOptions(opts.configPath))
	if err != nil {
		return reportConfigError(cmd, err, opts.verbose)
	}

	w := cmd.OutOrStdout()
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	schema := valueStyle.Render(cfg.Schema)
	if cfg.Schema == "" {
		schema = SubtitleStyle.Render("(not set)")
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("schema"), schema)

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("env_files"))
	if len(cfg.EnvFiles) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none, defaults to .env)"))
	}
	for _, f := range cfg.EnvFiles {
		fmt.Fprintf(w, "  - %s\n", valueStyle.Render(f))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("output"))
	fmt.Fprintf(w, "  format: %s\n", valueStyle.Render(cfg.Output.Format.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("http"))
	timeout := cfg.HTTP.Timeout
	if timeout == "" {
		timeout = "(none)"
	}
	fmt.Fprintf(w, "  timeout: %s\n", valueStyle.Render(timeout))
	fmt.Fprintf(w, "  user_agent: %s\n", valueStyle.Render(cfg.HTTP.UserAgent))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("validation"))
	fmt.Fprintf(w, "  keep_going: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Validation.KeepGoing)))
	fmt.Fprintf(w, "  strict: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Validation.Strict)))
	fmt.Fprintf(w, "  assert_format: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.Validation.AssertFormat)))
	fmt.Fprintf(w, "  draft: %s\n", valueStyle.Render(cfg.Validation.Draft))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

func showConfigPath(w io.Writer, app *App, opts *rootOptions) error {
	cfgDir, err := userConfigDir(app)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName))
	fmt.Fprintf(w, "Local config file: %s\n", filepath.Join(app.workDir, config.LocalConfigFileName))

	active, err := app.Config.Path(app.loadOptions(opts.configPath))
	if err != nil {
		return err
	}
	if active == "" {
		active = "(none, using defaults)"
	}
	fmt.Fprintf(w, "Active: %s\n", active)

	return nil
}

func initConfig(w io.Writer, app *App, force, local bool) error {
	var path string
	if local {
		path = filepath.Join(app.workDir, config.LocalConfigFileName)
	} else {
		cfgDir, err := userConfigDir(app)
		if err != nil {
			return err
		}
		path = filepath.Join(cfgDir, config.ConfigFileName)
	}

	written, err := config.WriteDefault(path, force)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	if !written {
		fmt.Fprintf(w, "%s Configuration already exists at %s (use --force to overwrite)\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func userConfigDir(app *App) (string, error) {
	if app.configDir != "" {
		return app.configDir, nil
	}
	return config.ConfigDir()
}
