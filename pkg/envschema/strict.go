// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// knownKeywords covers draft-04 through 2020-12, the annotation vocabulary,
// "nullable" and the env-specific "separator".
var knownKeywords = map[string]struct{}{
	// core
	"$schema": {}, "$id": {}, "id": {}, "$ref": {}, "$anchor": {}, "$dynamicRef": {},
	"$dynamicAnchor": {}, "$recursiveRef": {}, "$recursiveAnchor": {}, "$vocabulary": {},
	"$comment": {}, "$defs": {}, "definitions": {},
	// any instance
	"type": {}, "enum": {}, "const": {},
	// numbers
	"multipleOf": {}, "maximum": {}, "exclusiveMaximum": {}, "minimum": {}, "exclusiveMinimum": {},
	// strings
	"maxLength": {}, "minLength": {}, "pattern": {}, "format": {},
	"contentEncoding": {}, "contentMediaType": {}, "contentSchema": {},
	// arrays
	"items": {}, "additionalItems": {}, "prefixItems": {}, "maxItems": {}, "minItems": {},
	"uniqueItems": {}, "contains": {}, "maxContains": {}, "minContains": {}, "unevaluatedItems": {},
	// objects
	"maxProperties": {}, "minProperties": {}, "required": {}, "properties": {},
	"patternProperties": {}, "additionalProperties": {}, "dependencies": {},
	"dependentRequired": {}, "dependentSchemas": {}, "propertyNames": {}, "unevaluatedProperties": {},
	// applicators
	"allOf": {}, "anyOf": {}, "oneOf": {}, "not": {}, "if": {}, "then": {}, "else": {},
	// annotations
	"title": {}, "description": {}, "default": {}, "examples": {},
	"readOnly": {}, "writeOnly": {}, "deprecated": {},
	// extensions
	"nullable": {}, "separator": {},
}

var (
	// keywords whose value is a single subschema
	schemaKeywords = []string{
		"additionalItems", "additionalProperties", "contains", "propertyNames", "not",
		"if", "then", "else", "unevaluatedItems", "unevaluatedProperties", "contentSchema",
	}
	// keywords whose value is an object of subschemas
	schemaMapKeywords = []string{
		"properties", "patternProperties", "definitions", "$defs", "dependentSchemas", "dependencies",
	}
	// keywords whose value is an array of subschemas
	schemaListKeywords = []string{"allOf", "anyOf", "oneOf", "prefixItems"}
)

// unknownKeywords walks doc and returns the JSON pointer of every key that is
// not a known schema keyword, sorted.
func unknownKeywords(doc map[string]any) []string {
	var found []string
	walkKeywords(doc, "#", &found)
	sort.Strings(found)
	return found
}

// checkStrict fails when doc uses keywords the validator would silently ignore.
func checkStrict(doc map[string]any) error {
	found := unknownKeywords(doc)
	if len(found) == 0 {
		return nil
	}
	return fmt.Errorf("strict mode: unknown keyword(s) %s", strings.Join(found, ", "))
}

func walkKeywords(v any, loc string, found *[]string) {
	sch, ok := v.(map[string]any)
	if !ok {
		// Boolean schemas and malformed values are left to the compiler.
		return
	}

	for key := range sch {
		if _, known := knownKeywords[key]; !known {
			*found = append(*found, loc+"/"+escapePointer(key))
		}
	}

	for _, kw := range schemaKeywords {
		if sub, ok := sch[kw]; ok {
			walkKeywords(sub, loc+"/"+kw, found)
		}
	}

	for _, kw := range schemaMapKeywords {
		subs, ok := sch[kw].(map[string]any)
		if !ok {
			continue
		}
		for name, sub := range subs {
			// draft-04 "dependencies" may hold property lists
			if _, isList := sub.([]any); isList {
				continue
			}
			walkKeywords(sub, loc+"/"+kw+"/"+escapePointer(name), found)
		}
	}

	for _, kw := range schemaListKeywords {
		walkList(sch[kw], loc+"/"+kw, found)
	}

	switch items := sch["items"].(type) {
	case []any:
		walkList(items, loc+"/items", found)
	case map[string]any:
		walkKeywords(items, loc+"/items", found)
	}
}

func walkList(v any, loc string, found *[]string) {
	list, ok := v.([]any)
	if !ok {
		return
	}
	for i, sub := range list {
		walkKeywords(sub, loc+"/"+strconv.Itoa(i), found)
	}
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}
