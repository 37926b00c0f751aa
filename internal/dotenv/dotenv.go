// SPDX-License-Identifier: MPL-2.0

package dotenv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultFileName is the env file used when the caller names none.
const DefaultFileName = ".env"

// ErrNotExist is returned by ResolvePath when the resolved file is missing.
var ErrNotExist = errors.New("env file does not exist")

type (
	// SyntaxError reports a malformed line in a dotenv file.
	SyntaxError struct {
		File string
		Line int
		Msg  string
	}

	// PathError is returned when an env file path cannot be resolved to an
	// existing file. It wraps ErrNotExist for errors.Is() compatibility.
	PathError struct {
		Path string
	}
)

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("env file %q does not exist", e.Path)
}

// Unwrap returns ErrNotExist.
func (e *PathError) Unwrap() error { return ErrNotExist }

// ResolvePath turns an env file identifier into an absolute path.
// An empty path means DefaultFileName. Relative paths are joined to cwd;
// when cwd is empty, os.Getwd() is used.
func ResolvePath(path, cwd string) (string, error) {
	if path == "" {
		path = DefaultFileName
	}

	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}

	// Forward slashes are accepted on every platform.
	return filepath.Join(cwd, filepath.FromSlash(path)), nil
}

// CheckExists returns a *PathError unless fullPath names a regular file.
func CheckExists(fs afero.Fs, fullPath string) error {
	info, err := fs.Stat(fullPath)
	if err != nil || info.IsDir() {
		return &PathError{Path: fullPath}
	}
	return nil
}

// Load reads and parses the dotenv file at fullPath.
func Load(fs afero.Fs, fullPath string) (map[string]string, error) {
	content, err := afero.ReadFile(fs, fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &PathError{Path: fullPath}
		}
		return nil, fmt.Errorf("failed to read env file '%s': %w", fullPath, err)
	}

	return Parse(content, fullPath)
}

// Parse parses dotenv content into a new map. Later assignments to the same
// key win. Supported format:
//   - Lines starting with # are comments
//   - Empty lines and lines without '=' are ignored
//   - KEY=value (unquoted, '#' starts an inline comment)
//   - KEY="value" (double-quoted, escape sequences: \n, \r, \t, \\, \", \$)
//   - KEY='value' (single-quoted, literal)
//   - quoted values may span several lines and be followed by a # comment
//   - export KEY=value
//   - KEY= (empty value)
//
// Values are never expanded against other variables or the process environment.
func Parse(content []byte, filename string) (map[string]string, error) {
	env := make(map[string]string)
	lines := strings.Split(string(trimBOM(content)), "\n")

	for i := 0; i < len(lines); i++ {
		lineNum := i + 1

		line := strings.TrimLeft(strings.TrimSuffix(lines[i], "\r"), " \t")
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if rest, ok := strings.CutPrefix(line, "export "); ok {
			line = strings.TrimLeft(rest, " \t")
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			return nil, &SyntaxError{File: filename, Line: lineNum, Msg: "empty variable name"}
		}
		if strings.ContainsAny(key, " \t") {
			return nil, &SyntaxError{File: filename, Line: lineNum, Msg: fmt.Sprintf("invalid variable name %q", key)}
		}

		value = strings.TrimLeft(value, " \t")
		if value != "" && (value[0] == '"' || value[0] == '\'') {
			for closingQuote(value) < 0 && i+1 < len(lines) {
				i++
				value += "\n" + strings.TrimSuffix(lines[i], "\r")
			}
		}

		parsed, err := parseValue(value)
		if err != nil {
			return nil, &SyntaxError{File: filename, Line: lineNum, Msg: err.Error()}
		}

		env[key] = parsed
	}

	return env, nil
}

func trimBOM(b []byte) []byte {
	const bom = "\xef\xbb\xbf"
	if strings.HasPrefix(string(b), bom) {
		return b[len(bom):]
	}
	return b
}

// closingQuote returns the index of the quote that closes the one at
// value[0], or -1. Backslash escapes are skipped in double-quoted values.
func closingQuote(value string) int {
	q := value[0]
	for i := 1; i < len(value); i++ {
		switch {
		case value[i] == '\\' && q == '"':
			i++
		case value[i] == q:
			return i
		}
	}
	return -1
}

func parseValue(value string) (string, error) {
	value = strings.TrimLeft(value, " \t")
	if value == "" {
		return "", nil
	}

	if q := value[0]; q == '"' || q == '\'' {
		end := closingQuote(value)
		if end < 0 {
			if q == '"' {
				return "", errors.New("unterminated double quote")
			}
			return "", errors.New("unterminated single quote")
		}
		if rest := strings.TrimSpace(value[end+1:]); rest != "" && rest[0] != '#' {
			return "", fmt.Errorf("unexpected %q after closing quote", rest)
		}
		if q == '"' {
			return unescapeDoubleQuoted(value[1:end]), nil
		}
		return value[1:end], nil
	}

	if idx := strings.IndexByte(value, '#'); idx != -1 {
		value = value[:idx]
	}

	return strings.TrimSpace(value), nil
}

func unescapeDoubleQuoted(value string) string {
	var sb strings.Builder
	sb.Grow(len(value))

	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 == len(value) {
			sb.WriteByte(value[i])
			continue
		}

		i++
		switch next := value[i]; next {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '"', '$':
			sb.WriteByte(next)
		default:
			// Unknown escapes are kept verbatim.
			sb.WriteByte('\\')
			sb.WriteByte(next)
		}
	}

	return sb.String()
}
