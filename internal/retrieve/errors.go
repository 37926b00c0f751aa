// SPDX-License-Identifier: MPL-2.0

package retrieve

import "fmt"

const (
	// KindInvalidSource means the source is neither a file path nor a supported URL.
	KindInvalidSource Kind = iota + 1
	// KindUnsupportedExtension means a file source does not end in ".json".
	KindUnsupportedExtension
	// KindFileNotFound means a file source does not exist or is not readable.
	KindFileNotFound
	// KindNetworkError means the HTTP request failed or returned a non-2xx status.
	KindNetworkError
	// KindParseError means the retrieved content is not valid JSON.
	KindParseError
)

type (
	// Kind classifies retrieval failures.
	Kind int

	// Error is returned for every retrieval failure.
	Error struct {
		Kind   Kind
		Source string
		// Msg is the human-readable failure, without the cause.
		Msg string
		// Err is the underlying cause (optional).
		Err error
	}
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
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
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, source string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Source: source,
		Msg:    fmt.Sprintf(format, args...),
		Err:    cause,
	}
}
