// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/dcoupld/envschema/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "envschema"
	// ConfigFileName is the name of the config file in the config directory.
	ConfigFileName = "config.cue"
	// LocalConfigFileName is the config file looked up in the working directory.
	LocalConfigFileName = ".envschema.cue"
	// EnvPrefix prefixes environment variable overrides.
	EnvPrefix = "ENVSCHEMA"

	// maxConfigFileSize bounds config files (1 MB).
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the envschema configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// resolvePath returns the config file that loading would use, or "" when
// none exists.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'envschema config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		var err error
		if cfgDir, err = ConfigDir(); err != nil {
			return "", err
		}
	}

	if p := filepath.Join(cfgDir, ConfigFileName); fileExists(p) {
		return p, nil
	}
	if p := filepath.Join(opts.WorkDir, LocalConfigFileName); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables as well as the config file").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, path, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("schema", defaults.Schema)
	v.SetDefault("env_files", defaults.EnvFiles)
	v.SetDefault("output.format", string(defaults.Output.Format))
	v.SetDefault("http.timeout", defaults.HTTP.Timeout)
	v.SetDefault("http.user_agent", defaults.HTTP.UserAgent)
	v.SetDefault("validation.keep_going", defaults.Validation.KeepGoing)
	v.SetDefault("validation.strict", defaults.Validation.Strict)
	v.SetDefault("validation.assert_format", defaults.Validation.AssertFormat)
	v.SetDefault("validation.draft", defaults.Validation.Draft)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	// Optional fields, so concreteness is not required.
	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// Merging keeps defaults and env overrides in effect.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is left untouched unless force is set.
// It reports whether the file was written.
func WriteDefault(path string, force bool) (bool, error) {
	if !force && fileExists(path) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// envschema configuration file\n\n")

	if cfg.Schema != "" {
		fmt.Fprintf(&sb, "schema: %q\n", cfg.Schema)
	}

	sb.WriteString("env_files: [")
	for i, f := range cfg.EnvFiles {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", f)
	}
	sb.WriteString("]\n")

	fmt.Fprintf(&sb, "\noutput: format: %q\n", cfg.Output.Format)

	sb.WriteString("\nhttp: {\n")
	fmt.Fprintf(&sb, "\ttimeout:    %q\n", cfg.HTTP.Timeout)
	if cfg.HTTP.UserAgent != "" {
		fmt.Fprintf(&sb, "\tuser_agent: %q\n", cfg.HTTP.UserAgent)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nvalidation: {\n")
	fmt.Fprintf(&sb, "\tkeep_going:    %v\n", cfg.Validation.KeepGoing)
	fmt.Fprintf(&sb, "\tstrict:        %v\n", cfg.Validation.Strict)
	fmt.Fprintf(&sb, "\tassert_format: %v\n", cfg.Validation.AssertFormat)
	fmt.Fprintf(&sb, "\tdraft:         %q\n", cfg.Validation.Draft)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nui: verbose: %v\n", cfg.UI.Verbose)

	return sb.String()
}
