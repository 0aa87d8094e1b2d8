package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/echokernel/internal/util"
)

// NewSpec constructs a Spec from an explicit schema and handler.
//
// Example:
//
//	sum, err := tool.NewSpec(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (string, error) {
//	    return fmt.Sprint(args["a"].(float64) + args["b"].(float64)), nil
//	  },
//	)
func NewSpec(name, description string, parameters map[string]any, handler Handler) (Spec, error) {
	s := Spec{Name: name, Description: description, Parameters: parameters, Handler: handler}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// NewTyped derives the parameter schema from T and decodes validated
// arguments into a T before calling fn.
//
// Example:
//
//	type WeatherArgs struct {
//	  City string `json:"city" jsonschema:"description=City name"`
//	}
//
//	weather, err := tool.NewTyped("get_weather", "Current weather for a city",
//	  func(ctx context.Context, in WeatherArgs) (string, error) {
//	    return lookup(ctx, in.City)
//	  })
func NewTyped[T any](name, description string, fn func(ctx context.Context, in T) (string, error)) (Spec, error) {
	schema, err := util.CreateSchema[T]()
	if err != nil {
		return Spec{}, fmt.Errorf("tool %s: %w", name, err)
	}

	return NewSpec(name, description, schema, func(ctx context.Context, args map[string]any) (string, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return "", err
		}
		var in T
		if err := json.Unmarshal(raw, &in); err != nil {
			return "", &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation}
		}
		return fn(ctx, in)
	})
}

// MustSpec panics if err is non-nil. Intended for package level tool declarations.
func MustSpec(s Spec, err error) Spec {
	if err != nil {
		panic(err)
	}
	return s
}
