// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

type params map[string]any

// translate flattens a validation error tree into field errors. Leaves are
// ordered by instance location; leaves at the same location keep the
// validator's order.
func translate(verr *jsonschema.ValidationError) []FieldError {
	var leaves []*jsonschema.ValidationError
	collectLeaves(verr, &leaves)

	sort.SliceStable(leaves, func(i, j int) bool {
		return pointer(leaves[i].InstanceLocation) < pointer(leaves[j].InstanceLocation)
	})

	var out []FieldError
	for _, leaf := range leaves {
		out = append(out, fieldErrors(leaf)...)
	}
	return out
}

func collectLeaves(verr *jsonschema.ValidationError, leaves *[]*jsonschema.ValidationError) {
	if len(verr.Causes) == 0 {
		*leaves = append(*leaves, verr)
		return
	}
	for _, c := range verr.Causes {
		collectLeaves(c, leaves)
	}
}

func fieldErrors(leaf *jsonschema.ValidationError) []FieldError {
	at := pointer(leaf.InstanceLocation)

	switch k := leaf.ErrorKind.(type) {
	case *kind.Required:
		out := make([]FieldError, 0, len(k.Missing))
		for _, m := range k.Missing {
			out = append(out, newFieldError(at+"/"+escapePointer(m), "required",
				fmt.Sprintf("must have required property '%s'", m),
				params{"missingProperty": m}))
		}
		return out
	case *kind.DependentRequired:
		return dependencyErrors(at, "dependentRequired", k.Prop, k.Missing)
	case *kind.Dependency:
		return dependencyErrors(at, "dependencies", k.Prop, k.Missing)
	case *kind.AdditionalProperties:
		out := make([]FieldError, 0, len(k.Properties))
		for _, p := range k.Properties {
			out = append(out, newFieldError(at+"/"+escapePointer(p), "additionalProperties",
				"must NOT have additional properties",
				params{"additionalProperty": p}))
		}
		return out
	case *kind.Type:
		want := strings.Join(k.Want, ",")
		return one(at, "type", "must be "+want, params{"type": want})
	case *kind.Enum:
		return one(at, "enum", "must be equal to one of the allowed values", params{"allowedValues": k.Want})
	case *kind.Const:
		return one(at, "const", "must be equal to constant", params{"allowedValue": k.Want})
	case *kind.MinLength:
		return one(at, "minLength", fmt.Sprintf("must NOT have fewer than %d characters", k.Want), params{"limit": k.Want})
	case *kind.MaxLength:
		return one(at, "maxLength", fmt.Sprintf("must NOT have more than %d characters", k.Want), params{"limit": k.Want})
	case *kind.Pattern:
		return one(at, "pattern", fmt.Sprintf("must match pattern %q", k.Want), params{"pattern": k.Want})
	case *kind.Format:
		return one(at, "format", fmt.Sprintf("must match format %q", k.Want), params{"format": k.Want})
	case *kind.Minimum:
		return comparison(at, "minimum", ">=", k.Want)
	case *kind.Maximum:
		return comparison(at, "maximum", "<=", k.Want)
	case *kind.ExclusiveMinimum:
		return comparison(at, "exclusiveMinimum", ">", k.Want)
	case *kind.ExclusiveMaximum:
		return comparison(at, "exclusiveMaximum", "<", k.Want)
	case *kind.MultipleOf:
		n := ratNumber(k.Want)
		return one(at, "multipleOf", "must be multiple of "+n.String(), params{"multipleOf": n})
	case *kind.MinItems:
		return one(at, "minItems", fmt.Sprintf("must NOT have fewer than %d items", k.Want), params{"limit": k.Want})
	case *kind.MaxItems:
		return one(at, "maxItems", fmt.Sprintf("must NOT have more than %d items", k.Want), params{"limit": k.Want})
	case *kind.MinProperties:
		return one(at, "minProperties", fmt.Sprintf("must NOT have fewer than %d properties", k.Want), params{"limit": k.Want})
	case *kind.MaxProperties:
		return one(at, "maxProperties", fmt.Sprintf("must NOT have more than %d properties", k.Want), params{"limit": k.Want})
	case *kind.UniqueItems:
		return one(at, "uniqueItems",
			fmt.Sprintf("must NOT have duplicate items (items ## %d and %d are identical)", k.Duplicates[1], k.Duplicates[0]),
			params{"i": k.Duplicates[1], "j": k.Duplicates[0]})
	case *kind.FalseSchema:
		return one(at, "false schema", "boolean schema is false", params{})
	}

	keyword := ""
	if path := leaf.ErrorKind.KeywordPath(); len(path) > 0 {
		keyword = path[len(path)-1]
	}
	return one(at, keyword, leaf.ErrorKind.LocalizedString(printer), params{})
}

func dependencyErrors(at, keyword, prop string, missing []string) []FieldError {
	if len(missing) == 0 {
		return one(at, keyword, "must match dependency schema of property "+prop, params{"property": prop})
	}
	return one(at, keyword,
		fmt.Sprintf("must have %s %s when property %s is present", plural(len(missing), "property", "properties"), strings.Join(missing, ", "), prop),
		params{
			"property":        prop,
			"missingProperty": missing[0],
			"deps":            strings.Join(missing, ", "),
			"depsCount":       len(missing),
		})
}

func comparison(at, keyword, op string, limit *big.Rat) []FieldError {
	n := ratNumber(limit)
	return one(at, keyword, fmt.Sprintf("must be %s %s", op, n), params{"comparison": op, "limit": n})
}

func one(at, keyword, msg string, p params) []FieldError {
	return []FieldError{newFieldError(at, keyword, msg, p)}
}

func newFieldError(at, keyword, msg string, p params) FieldError {
	details, err := json.MarshalNoEscape(p)
	if err != nil {
		details = []byte("{}")
	}
	return FieldError{
		Variable: at,
		Message:  msg,
		Details:  string(details),
		Keyword:  keyword,
	}
}

// ratNumber renders r as a JSON number, integral when possible.
func ratNumber(r *big.Rat) json.Number {
	if r == nil {
		return json.Number("0")
	}
	if r.IsInt() {
		return json.Number(r.Num().String())
	}
	f, _ := r.Float64()
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// pointer renders an instance location as a JSON pointer ("" for the root).
func pointer(tokens []string) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteByte('/')
		sb.WriteString(escapePointer(t))
	}
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
