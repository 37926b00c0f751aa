// SPDX-License-Identifier: MPL-2.0

package envschema

type (
	// Outcome is the result of validating one env file.
	Outcome struct {
		// EnvFile is the identifier as given by the caller ("" for the default file).
		EnvFile         string `json:"envFile" yaml:"envFile"`
		EnvFileFullPath string `json:"envFileFullPath" yaml:"envFileFullPath"`
		Success         bool   `json:"success" yaml:"success"`
		// Variables holds the validated values in string form. Only set on success.
		Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
		// Values holds the validated values after defaults and coercion.
		Values map[string]any `json:"values,omitempty" yaml:"values,omitempty"`
		// Err is set when Success is false.
		Err *Error `json:"error,omitempty" yaml:"error,omitempty"`
	}

	// Result is what Validate returns for a conforming env file.
	Result struct {
		Variables map[string]string
		Values    map[string]any
	}
)

// Errors returns the field errors of a failed outcome.
func (o Outcome) Errors() []FieldError {
	if o.Err == nil {
		return nil
	}
	return o.Err.Fields
}
