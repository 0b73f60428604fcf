package triage

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/google/generative-ai-go/genai"
)

// Validate checks a decoded JSON value against schema: required fields are
// present and non-null, every present field has the declared JSON type,
// enum values are members, and array items match their item schema.
// Properties not named by the schema are ignored. path prefixes error paths.
func Validate(schema *genai.Schema, v any, path string) error {
	if schema == nil {
		return nil
	}

	switch schema.Type {
	case genai.TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeMismatch(path, "object", v)
		}
		for _, name := range schema.Required {
			if val, ok := obj[name]; !ok || val == nil {
				return &DecodeError{Path: join(path, name), Reason: "required field missing"}
			}
		}
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			val, ok := obj[name]
			if !ok || (val == nil && !slices.Contains(schema.Required, name)) {
				continue
			}
			if err := Validate(schema.Properties[name], val, join(path, name)); err != nil {
				return err
			}
		}
	case genai.TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return typeMismatch(path, "array", v)
		}
		for i, item := range arr {
			if err := Validate(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case genai.TypeString:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(path, "string", v)
		}
		if len(schema.Enum) > 0 && !slices.Contains(schema.Enum, s) {
			return &DecodeError{Path: path, Reason: fmt.Sprintf("value %q not in %v", s, schema.Enum)}
		}
	case genai.TypeNumber:
		if _, ok := v.(float64); !ok {
			return typeMismatch(path, "number", v)
		}
	case genai.TypeInteger:
		n, ok := v.(float64)
		if !ok || n != math.Trunc(n) {
			return typeMismatch(path, "integer", v)
		}
	case genai.TypeBoolean:
		if _, ok := v.(bool); !ok {
			return typeMismatch(path, "boolean", v)
		}
	}
	return nil
}

func typeMismatch(path, want string, got any) error {
	return &DecodeError{Path: path, Reason: fmt.Sprintf("expected %s, got %s", want, jsonType(got))}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
