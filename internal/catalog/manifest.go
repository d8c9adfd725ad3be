// Package catalog loads binding manifests: YAML files declaring constant
// providers for a fixed set of wire-safe types. Manifests are how external
// configuration (and the daemon's RPC surface) feed values into a store
// without shipping functions around.
package catalog

import (
	"fmt"
	"reflect"

	"github.com/alverad/inout/pkg/inout"
)

// Manifest is one parsed catalog file.
type Manifest struct {
	Bindings []BindingSpec `yaml:"bindings"`
}

// BindingSpec declares a constant provider.
type BindingSpec struct {
	Type     string  `yaml:"type"`
	Value    any     `yaml:"value"`
	Weight   float64 `yaml:"weight"`
	Optional bool    `yaml:"optional"`
}

var typeTable = map[string]reflect.Type{
	"string":   reflect.TypeOf(""),
	"int":      reflect.TypeOf(int(0)),
	"float":    reflect.TypeOf(float64(0)),
	"bool":     reflect.TypeOf(false),
	"[]string": reflect.TypeOf([]string(nil)),
	"[]int":    reflect.TypeOf([]int(nil)),
	"[]float":  reflect.TypeOf([]float64(nil)),
}

// SupportedTypes returns the type names a binding may declare.
func SupportedTypes() []string {
	return []string{"string", "int", "float", "bool", "[]string", "[]int", "[]float"}
}

// TypeByName maps a wire type name to its Go type.
func TypeByName(name string) (reflect.Type, bool) {
	t, ok := typeTable[name]
	return t, ok
}

// ParseBinding resolves a spec into a hint and a coerced value. Decoded
// YAML and JSON disagree about number representations, so scalars are
// normalized here.
func ParseBinding(spec BindingSpec) (inout.Hint, any, error) {
	t, ok := typeTable[spec.Type]
	if !ok {
		return inout.Hint{}, nil, fmt.Errorf("unsupported binding type %q", spec.Type)
	}

	v, err := coerce(spec.Value, spec.Type)
	if err != nil {
		return inout.Hint{}, nil, fmt.Errorf("binding for %s: %w", spec.Type, err)
	}

	hint := inout.HintFor(t)
	if spec.Optional {
		hint = hint.AsOptional()
	}
	return hint, v, nil
}

func coerce(v any, typeName string) (any, error) {
	switch typeName {
	case "string":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("value %v (%T) is not a string", v, v)
		}
		return s, nil
	case "int":
		return coerceInt(v)
	case "float":
		return coerceFloat(v)
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("value %v (%T) is not a bool", v, v)
		}
		return b, nil
	case "[]string":
		items, err := coerceSlice(v)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: %v (%T) is not a string", i, item, item)
			}
			out[i] = s
		}
		return out, nil
	case "[]int":
		items, err := coerceSlice(v)
		if err != nil {
			return nil, err
		}
		out := make([]int, len(items))
		for i, item := range items {
			n, err := coerceInt(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = n.(int)
		}
		return out, nil
	case "[]float":
		items, err := coerceSlice(v)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(items))
		for i, item := range items {
			f, err := coerceFloat(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = f.(float64)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported binding type %q", typeName)
}

func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return nil, fmt.Errorf("value %v is not an integer", n)
		}
		return int(n), nil
	}
	return nil, fmt.Errorf("value %v (%T) is not an int", v, v)
}

func coerceFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return nil, fmt.Errorf("value %v (%T) is not a float", v, v)
}

func coerceSlice(v any) ([]any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("value %v (%T) is not a list", v, v)
	}
	return items, nil
}
