// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

const (
	sourceReference sourceKind = iota + 1
	sourceInline
)

type (
	sourceKind int

	// SchemaSource is where the schema comes from: a reference (file path or
	// URL) or an inline document. Build one with Reference, Inline or SourceFrom.
	SchemaSource struct {
		kind     sourceKind
		locator  string
		document map[string]any
	}

	// SchemaState is a snapshot of a Service's schema slot.
	SchemaState struct {
		// Locator is the file path or URL. Empty for inline sources.
		Locator string
		Inline  bool
		// Value is the loaded document, nil until Loaded.
		Value  map[string]any
		Loaded bool
	}
)

// Reference returns a source that loads the schema from a file path or URL.
func Reference(locator string) SchemaSource {
	return SchemaSource{kind: sourceReference, locator: locator}
}

// Inline returns a source backed by an in-memory schema document.
func Inline(doc map[string]any) SchemaSource {
	return SchemaSource{kind: sourceInline, document: doc}
}

// SourceFrom builds a SchemaSource from a string (reference), a
// map[string]any (inline) or an existing SchemaSource.
func SourceFrom(v any) (SchemaSource, error) {
	switch s := v.(type) {
	case string:
		return Reference(s), nil
	case map[string]any:
		if s == nil {
			break
		}
		return Inline(s), nil
	case SchemaSource:
		return s, s.check()
	case *SchemaSource:
		if s == nil {
			break
		}
		return *s, s.check()
	}
	return SchemaSource{}, invalidArgument(v)
}

// Locator returns the reference locator, or "" for inline sources.
func (s SchemaSource) Locator() string { return s.locator }

// IsInline reports whether the source is an inline document.
func (s SchemaSource) IsInline() bool { return s.kind == sourceInline }

// String describes the source for messages.
func (s SchemaSource) String() string {
	if s.IsInline() {
		return "the given schema object"
	}
	return fmt.Sprintf("schema at %q", s.locator)
}

func (s SchemaSource) check() error {
	switch s.kind {
	case sourceReference:
		if s.locator != "" {
			return nil
		}
	case sourceInline:
		if s.document != nil {
			return nil
		}
	}
	return invalidArgument(s)
}

func invalidArgument(v any) *Error {
	return newError(KindInvalidSchemaArgument, nil,
		`the "schema" argument must be either a string or an object, %q provided`, fmt.Sprintf("%T", v))
}

// normalizeDocument round-trips an inline document through JSON so that Go
// values such as []string or struct fields become plain JSON values.
func normalizeDocument(doc map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
