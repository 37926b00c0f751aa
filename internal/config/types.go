// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// OutputText prints one human-readable line or block per env file.
	OutputText OutputFormat = "text"
	// OutputJSON prints the outcomes as a JSON array.
	OutputJSON OutputFormat = "json"
	// OutputYAML prints the outcomes as a YAML sequence.
	OutputYAML OutputFormat = "yaml"

	// DefaultDraft is the JSON Schema draft used when a schema has no "$schema".
	DefaultDraft = "draft7"
)

var (
	// ErrInvalidOutputFormat is returned when an OutputFormat value is not recognized.
	ErrInvalidOutputFormat = errors.New("invalid output format")
	// ErrInvalidTimeout is returned when http.timeout is not a non-negative duration.
	ErrInvalidTimeout = errors.New("invalid http timeout")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// OutputFormat selects how outcomes are rendered.
	OutputFormat string

	// InvalidOutputFormatError is returned when an OutputFormat value is not recognized.
	// It wraps ErrInvalidOutputFormat for errors.Is() compatibility.
	InvalidOutputFormatError struct {
		Value OutputFormat
	}

	// InvalidConfigError collects the field-level errors of a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the envschema configuration.
	Config struct {
		// Schema is the default schema locator.
		Schema string `json:"schema" mapstructure:"schema"`
		// EnvFiles are validated when no files are given on the command line.
		EnvFiles   []string         `json:"env_files" mapstructure:"env_files"`
		Output     OutputConfig     `json:"output" mapstructure:"output"`
		HTTP       HTTPConfig       `json:"http" mapstructure:"http"`
		Validation ValidationConfig `json:"validation" mapstructure:"validation"`
		UI         UIConfig         `json:"ui" mapstructure:"ui"`
	}

	// OutputConfig configures result rendering.
	OutputConfig struct {
		Format OutputFormat `json:"format" mapstructure:"format"`
	}

	// HTTPConfig configures schema retrieval over HTTP.
	HTTPConfig struct {
		// Timeout is a Go duration string. Empty means no client timeout.
		Timeout   string `json:"timeout" mapstructure:"timeout"`
		UserAgent string `json:"user_agent" mapstructure:"user_agent"`
	}

	// ValidationConfig configures the validator.
	ValidationConfig struct {
		// KeepGoing reports every env file instead of stopping at the first failure.
		KeepGoing bool `json:"keep_going" mapstructure:"keep_going"`
		// Strict rejects schemas with unknown keywords.
		Strict bool `json:"strict" mapstructure:"strict"`
		// AssertFormat makes "format" a validation keyword.
		AssertFormat bool   `json:"assert_format" mapstructure:"assert_format"`
		Draft        string `json:"draft" mapstructure:"draft"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		EnvFiles: []string{},
		Output:   OutputConfig{Format: OutputText},
		HTTP:     HTTPConfig{UserAgent: "envschema"},
		Validation: ValidationConfig{
			Strict:       true,
			AssertFormat: true,
			Draft:        DefaultDraft,
		},
	}
}

// String returns the string representation of the OutputFormat.
func (f OutputFormat) String() string { return string(f) }

// IsValid returns whether the OutputFormat is one of the defined formats,
// and a list of validation errors if it is not.
func (f OutputFormat) IsValid() (bool, []error) {
	switch f {
	case OutputText, OutputJSON, OutputYAML:
		return true, nil
	default:
		return false, []error{&InvalidOutputFormatError{Value: f}}
	}
}

// Error implements the error interface.
func (e *InvalidOutputFormatError) Error() string {
	return fmt.Sprintf("invalid output format %q (valid: text, json, yaml)", e.Value)
}

// Unwrap returns ErrInvalidOutputFormat for errors.Is() compatibility.
func (e *InvalidOutputFormatError) Unwrap() error { return ErrInvalidOutputFormat }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// ParseTimeout parses Timeout. Zero means no timeout.
func (h HTTPConfig) ParseTimeout() (time.Duration, error) {
	if h.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(h.Timeout)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimeout, h.Timeout)
	}
	return d, nil
}

// IsValid checks the fields CUE cannot check: values set through
// environment variables and the timeout syntax.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Output.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if _, err := c.HTTP.ParseTimeout(); err != nil {
		errs = append(errs, err)
	}
	if !validDraft(c.Validation.Draft) {
		errs = append(errs, fmt.Errorf("unknown JSON Schema draft %q", c.Validation.Draft))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func validDraft(d string) bool {
	switch d {
	case "", "draft4", "draft6", "draft7", "draft2019-09", "draft2020-12":
		return true
	}
	return false
}
