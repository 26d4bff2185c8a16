package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// FieldType is the JSON type an argument must have.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field declares one accepted argument.
//
// A field without a Default is required unless Optional is set. Enum only
// applies to string fields; Minimum and Maximum only to numeric ones.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Default     any
	Enum        []string
	Optional    bool
	Minimum     *float64
	Maximum     *float64
}

// Schema is the ordered list of fields a tool accepts. Fields are validated
// in declaration order, so the first violation reported is deterministic.
type Schema struct {
	Fields []Field
}

// Args holds validated, coerced arguments.
type Args map[string]any

// Decode copies the arguments into the struct pointed to by out, matching
// `mapstructure` tags (or field names, case-insensitively).
func (a Args) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(a)); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// Validation is the outcome of Schema.Validate: either Args is usable or Err
// names the first violated field.
type Validation struct {
	Args Args
	Err  *ValidationError
}

// OK reports whether validation succeeded.
func (v Validation) OK() bool { return v.Err == nil }

// Validate checks raw against the schema and returns the coerced arguments.
// Keys the schema does not declare are dropped.
func (s Schema) Validate(raw map[string]any) Validation {
	args := make(Args, len(s.Fields))
	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			switch {
			case f.Default != nil:
				args[f.Name] = cloneDefault(f.Default)
			case !f.Optional:
				return invalid(f.Name, "is required")
			}
			continue
		}

		coerced, reason := f.check(v)
		if reason != "" {
			return invalid(f.Name, reason)
		}
		args[f.Name] = coerced
	}
	return Validation{Args: args}
}

func invalid(field, reason string) Validation {
	return Validation{Err: &ValidationError{Field: field, Reason: reason}}
}

// check verifies one present value and returns it in canonical Go form.
func (f Field) check(v any) (any, string) {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch(f.Type, v)
		}
		if len(f.Enum) > 0 && !slices.Contains(f.Enum, s) {
			return nil, fmt.Sprintf("must be one of [%s], got %q", strings.Join(f.Enum, ", "), s)
		}
		return s, ""

	case TypeInteger:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) {
			return nil, typeMismatch(f.Type, v)
		}
		if n < minInt || n >= maxIntBound {
			return nil, fmt.Sprintf("is out of integer range, got %v", n)
		}
		if reason := f.checkRange(n); reason != "" {
			return nil, reason
		}
		return int(n), ""

	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, typeMismatch(f.Type, v)
		}
		if reason := f.checkRange(n); reason != "" {
			return nil, reason
		}
		return n, ""

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(f.Type, v)
		}
		return b, ""

	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, typeMismatch(f.Type, v)
		}
		return m, ""

	case TypeArray:
		a, ok := v.([]any)
		if !ok {
			return nil, typeMismatch(f.Type, v)
		}
		return a, ""
	}
	return nil, fmt.Sprintf("has unsupported schema type %q", f.Type)
}

// Integral floats in [minInt, maxIntBound) convert to int exactly. The upper
// bound is exclusive because float64(math.MaxInt) rounds up to 2^63.
const (
	minInt      = float64(math.MinInt)
	maxIntBound = -float64(math.MinInt)
)

func (f Field) checkRange(n float64) string {
	if f.Minimum != nil && n < *f.Minimum {
		return fmt.Sprintf("must be >= %v, got %v", *f.Minimum, n)
	}
	if f.Maximum != nil && n > *f.Maximum {
		return fmt.Sprintf("must be <= %v, got %v", *f.Maximum, n)
	}
	return ""
}

// promptLine describes the field for PromptCatalogue, e.g.
// "limit (integer, default 3): Maximum number of results".
func (f Field) promptLine() string {
	var qual string
	switch {
	case f.Default != nil:
		qual = fmt.Sprintf("default %v", f.Default)
	case f.Optional:
		qual = "optional"
	default:
		qual = "required"
	}
	line := fmt.Sprintf("%s (%s, %s)", f.Name, f.Type, qual)
	if f.Description != "" {
		line += ": " + f.Description
	}
	return line
}

// cloneDefault copies map and slice defaults so a handler that mutates its
// arguments cannot change the definition.
func cloneDefault(v any) any {
	switch d := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(d))
		for k, e := range d {
			out[k] = cloneDefault(e)
		}
		return out
	case []any:
		out := make([]any, len(d))
		for i, e := range d {
			out[i] = cloneDefault(e)
		}
		return out
	case []string:
		return slices.Clone(d)
	}
	return v
}

func typeMismatch(want FieldType, got any) string {
	return fmt.Sprintf("must be of type %s, got %T", want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// JSONSchema renders the schema as a JSON Schema object for introspection.
func (s Schema) JSONSchema() *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s.Fields)),
	}
	for _, f := range s.Fields {
		prop := &jsonschema.Schema{
			Type:        string(f.Type),
			Description: f.Description,
			Minimum:     f.Minimum,
			Maximum:     f.Maximum,
		}
		for _, e := range f.Enum {
			prop.Enum = append(prop.Enum, e)
		}
		if f.Default != nil {
			if raw, err := json.Marshal(f.Default); err == nil {
				prop.Default = raw
			}
		}
		out.Properties[f.Name] = prop
		if f.Default == nil && !f.Optional {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

// Float returns a pointer to v, for Field.Minimum and Field.Maximum.
func Float(v float64) *float64 { return &v }
