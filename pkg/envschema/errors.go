// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// KindInvalidSchemaArgument means the schema source is neither a locator nor an object.
	KindInvalidSchemaArgument Kind = iota + 1
	// KindMissingEnvFile means a resolved env file path does not exist.
	KindMissingEnvFile
	// KindInvalidEnvFile means an env file exists but could not be read or parsed.
	KindInvalidEnvFile
	// KindInvalidSource means the schema locator is neither a file path nor a URL.
	KindInvalidSource
	// KindUnsupportedExtension means a schema file does not end in ".json".
	KindUnsupportedExtension
	// KindFileNotFound means a schema file does not exist or is not readable.
	KindFileNotFound
	// KindNetworkError means fetching a schema URL failed.
	KindNetworkError
	// KindParseError means the schema content is not JSON.
	KindParseError
	// KindSchemaLoad is a schema load failure that fits none of the retrieval kinds.
	KindSchemaLoad
	// KindInvalidSchemaDocument means the loaded document is not a usable JSON Schema.
	KindInvalidSchemaDocument
	// KindSchemaMismatch means the env values do not conform to the schema.
	KindSchemaMismatch
)

type (
	// Kind discriminates the failures reported by a Service.
	Kind int

	// Error is the only error type returned across the package boundary.
	// Lower-level causes are kept as text only.
	Error struct {
		Kind    Kind   `json:"kind" yaml:"kind"`
		Message string `json:"message" yaml:"message"`
		// Cause is the message of the wrapped failure, if any.
		Cause string `json:"cause,omitempty" yaml:"cause,omitempty"`
		// Fields lists the violated constraints. Only set for KindSchemaMismatch.
		Fields []FieldError `json:"errors,omitempty" yaml:"errors,omitempty"`
	}

	// FieldError is one violated schema constraint.
	FieldError struct {
		// Variable is a JSON pointer to the offending value, e.g. "/PORT".
		Variable string `json:"variable" yaml:"variable"`
		Message  string `json:"message" yaml:"message"`
		// Details is the JSON-serialized keyword parameters.
		Details string `json:"details" yaml:"details"`
		// Keyword is the schema keyword that failed (not part of Details).
		Keyword string `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	}
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidSchemaArgument:
		return "InvalidSchemaArgument"
	case KindMissingEnvFile:
		return "MissingEnvFile"
	case KindInvalidEnvFile:
		return "InvalidEnvFile"
	case KindInvalidSource:
		return "InvalidSource"
	case KindUnsupportedExtension:
		return "UnsupportedExtension"
	case KindFileNotFound:
		return "FileNotFound"
	case KindNetworkError:
		return "NetworkError"
	case KindParseError:
		return "ParseError"
	case KindSchemaLoad:
		return "SchemaLoadError"
	case KindInvalidSchemaDocument:
		return "InvalidSchemaDocument"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText renders the kind name, so Kind serializes as a string.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s (original message: %s)", e.Message, e.Cause)
	}
	return e.Message
}

// IsSchemaLoad reports whether the error happened while loading the schema.
// Such errors abort a whole Run.
func (e *Error) IsSchemaLoad() bool {
	switch e.Kind {
	case KindInvalidSource, KindUnsupportedExtension, KindFileNotFound,
		KindNetworkError, KindParseError, KindSchemaLoad:
		return true
	default:
		return false
	}
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// String renders the field error as "variable: message".
func (f FieldError) String() string {
	v := strings.TrimPrefix(f.Variable, "/")
	if v == "" {
		return f.Message
	}
	return v + ": " + f.Message
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if cause != nil {
		e.Cause = cause.Error()
	}
	return e
}
