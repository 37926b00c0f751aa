// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
	// WorkDir is where LocalConfigFileName is looked up ("" means the process working directory).
	WorkDir string
}

// Provider loads configuration from explicit options.
type Provider interface {
	// Load returns the configuration and the file it came from ("" for defaults only).
	Load(ctx context.Context, opts LoadOptions) (*Config, string, error)
	// Path returns the config file Load would read, or "" when none exists.
	Path(opts LoadOptions) (string, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return loadWithOptions(ctx, opts)
}

// Path resolves the config file without reading it.
func (p *fileProvider) Path(opts LoadOptions) (string, error) {
	return resolvePath(opts)
}
