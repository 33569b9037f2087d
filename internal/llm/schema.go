package llm

import (
	"fmt"
	"math"

	"google.golang.org/genai"
)

// Validate checks a decoded JSON value against a response schema before any
// caller-visible state is touched. It covers the subset of JSON Schema the
// pipeline relies on: object required fields and property types, arrays,
// string enums, numbers, integers and booleans.
func Validate(schema *genai.Schema, value any) error {
	return validate(schema, value, "$")
}

func validate(schema *genai.Schema, value any, path string) error {
	if schema == nil {
		return nil
	}

	switch schema.Type {
	case genai.TypeObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, value)
		}
		for _, required := range schema.Required {
			if _, present := obj[required]; !present {
				return fmt.Errorf("%s: missing required field %q", path, required)
			}
		}
		for name, propSchema := range schema.Properties {
			propValue, present := obj[name]
			if !present {
				continue
			}
			if err := validate(propSchema, propValue, path+"."+name); err != nil {
				return err
			}
		}

	case genai.TypeArray:
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, value)
		}
		for i, item := range arr {
			if err := validate(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case genai.TypeString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, value)
		}
		if len(schema.Enum) > 0 && !contains(schema.Enum, s) {
			return fmt.Errorf("%s: value %q is not one of %v", path, s, schema.Enum)
		}

	case genai.TypeNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("%s: expected number, got %T", path, value)
		}

	case genai.TypeInteger:
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%s: expected integer, got %T", path, value)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("%s: expected integer, got %v", path, f)
		}

	case genai.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: expected boolean, got %T", path, value)
		}
	}

	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
