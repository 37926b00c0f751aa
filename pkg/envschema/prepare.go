// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// prepare builds the instance validated against schema from a parsed env
// file. Only root "properties" are considered:
//   - "default" fills absent keys
//   - values are coerced to the first declared type they can represent
//   - "separator" splits a string into an array for array-typed properties
//   - with "additionalProperties": false, undeclared keys are dropped
//
// env is not modified. The returned map holds the typed values; vars holds
// the string form of the same keys.
func prepare(schema map[string]any, env map[string]string) (data map[string]any, vars map[string]string) {
	data = make(map[string]any, len(env))
	vars = make(map[string]string, len(env))
	for k, v := range env {
		data[k] = v
		vars[k] = v
	}

	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		val, present := data[name]
		if !present {
			def, hasDefault := prop["default"]
			if !hasDefault {
				continue
			}
			val = def
			vars[name] = stringify(def)
		}
		data[name] = coerce(prop, val)
	}

	if ap, ok := schema["additionalProperties"].(bool); ok && !ap {
		patterns := compilePatterns(schema["patternProperties"])
		for name := range data {
			if declared(name, props, patterns) {
				continue
			}
			delete(data, name)
			delete(vars, name)
		}
	}

	return data, vars
}

func declared(name string, props map[string]any, patterns []*regexp.Regexp) bool {
	if _, ok := props[name]; ok {
		return true
	}
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// compilePatterns ignores invalid expressions; the compiler reports them.
func compilePatterns(v any) []*regexp.Regexp {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	res := make([]*regexp.Regexp, 0, len(m))
	for p := range m {
		if re, err := regexp.Compile(p); err == nil {
			res = append(res, re)
		}
	}
	return res
}

func declaredTypes(prop map[string]any) []string {
	switch t := prop["type"].(type) {
	case string:
		return []string{t}
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		return types
	}
	return nil
}

// coerce converts val to one of the property's declared types. Values that
// already match, or that no type can represent, are returned unchanged so
// the validator reports them.
func coerce(prop map[string]any, val any) any {
	types := declaredTypes(prop)
	if len(types) == 0 {
		return val
	}
	for _, t := range types {
		if matchesType(t, val) {
			return val
		}
	}
	for _, t := range types {
		if t == "array" {
			if out, ok := splitArray(prop, val); ok {
				return out
			}
			continue
		}
		if out, ok := coerceScalar(t, val); ok {
			return out
		}
	}
	return val
}

func splitArray(prop map[string]any, val any) (any, bool) {
	sep, ok := prop["separator"].(string)
	s, isString := val.(string)
	if !ok || sep == "" || !isString {
		return nil, false
	}

	parts := strings.Split(s, sep)
	items, _ := prop["items"].(map[string]any)
	out := make([]any, len(parts))
	for i, p := range parts {
		if items != nil {
			out[i] = coerce(items, p)
		} else {
			out[i] = p
		}
	}
	return out, true
}

func coerceScalar(typ string, val any) (any, bool) {
	switch typ {
	case "string":
		switch v := val.(type) {
		case json.Number:
			return v.String(), true
		case bool:
			return strconv.FormatBool(v), true
		case nil:
			return "", true
		}
	case "number", "integer":
		f, ok := toFloat(val)
		if !ok || (typ == "integer" && f != math.Trunc(f)) {
			return nil, false
		}
		return json.Number(strconv.FormatFloat(f, 'f', -1, 64)), true
	case "boolean":
		switch v := val.(type) {
		case string:
			if v == "true" || v == "false" {
				return v == "true", true
			}
		case json.Number:
			if v == "0" || v == "1" {
				return v == "1", true
			}
		case nil:
			return false, true
		}
	case "null":
		switch v := val.(type) {
		case string:
			if v == "" {
				return nil, true
			}
		case json.Number:
			if v == "0" {
				return nil, true
			}
		case bool:
			if !v {
				return nil, true
			}
		}
	}
	return nil, false
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case string:
		if v == "" || strings.TrimSpace(v) != v {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	}
	return 0, false
}

func matchesType(typ string, val any) bool {
	switch typ {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		_, ok := val.(json.Number)
		return ok
	case "integer":
		n, ok := val.(json.Number)
		if !ok {
			return false
		}
		f, err := n.Float64()
		return err == nil && f == math.Trunc(f)
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "null":
		return val == nil
	case "array":
		_, ok := val.([]any)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	}
	return false
}

// stringify renders a default value the way it would appear in an env file.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
