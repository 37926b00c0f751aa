// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dcoupld/envschema/internal/config"
	"github.com/dcoupld/envschema/pkg/envschema"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer; every command handler receives an App.
	App struct {
		Config ConfigProvider
		// Retriever overrides the schema retriever built from the HTTP settings.
		Retriever envschema.Retriever
		stdout    io.Writer
		stderr    io.Writer
		workDir   string
		configDir string
		// exitCode is the status of a failure a command already reported.
		exitCode int
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		Retriever envschema.Retriever
		Stdout    io.Writer
		Stderr    io.Writer
		// WorkDir is where env files, schema files and .envschema.cue are
		// looked up. Defaults to the process working directory.
		WorkDir string
		// ConfigDir replaces the platform config directory.
		ConfigDir string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
		Path(opts config.LoadOptions) (string, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		deps.WorkDir = wd
	}

	return &App{
		Config:    deps.Config,
		Retriever: deps.Retriever,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
		workDir:   deps.WorkDir,
		configDir: deps.ConfigDir,
	}, nil
}

// loadOptions builds the config lookup for an explicit --config value.
// A relative configPath is taken relative to the work directory.
func (a *App) loadOptions(configPath string) config.LoadOptions {
	if configPath != "" && !filepath.IsAbs(configPath) {
		configPath = filepath.Join(a.workDir, configPath)
	}
	return config.LoadOptions{
		ConfigFilePath: configPath,
		ConfigDirPath:  a.configDir,
		WorkDir:        a.workDir,
	}
}
