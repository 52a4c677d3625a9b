package graph

import (
	"fmt"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
)

// CheckValue validates v against prop and returns it normalised to the
// property's Go representation (string, int64, float64 or bool).
func CheckValue(prop catalog.Property, v any) (any, error) {
	name := prop.PropertyName()
	switch p := prop.(type) {
	case catalog.StringProperty:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(name, p.Kind(), v)
		}
		return s, nil
	case catalog.EnumProperty:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(name, p.Kind(), v)
		}
		if !p.Allows(s) {
			return nil, workflow.Errorf(workflow.ErrConfigOutOfRange,
				fmt.Sprintf("%s: %q is not one of %v", name, s, p.Values), nil, map[string]any{"key": name})
		}
		return s, nil
	case catalog.IntegerProperty:
		n, ok := catalog.AsInteger(v)
		if !ok {
			return nil, mismatch(name, p.Kind(), v)
		}
		if !p.InRange(n) {
			return nil, outOfRange(name, n, p.Min, p.Max)
		}
		return n, nil
	case catalog.NumberProperty:
		f, ok := catalog.AsNumber(v)
		if !ok {
			return nil, mismatch(name, p.Kind(), v)
		}
		if !p.InRange(f) {
			return nil, outOfRange(name, f, p.Min, p.Max)
		}
		return f, nil
	case catalog.BooleanProperty:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(name, p.Kind(), v)
		}
		return b, nil
	}
	return nil, workflow.Errorf(workflow.ErrConfigTypeMismatch,
		fmt.Sprintf("%s: unsupported property kind %q", name, prop.Kind()), nil, map[string]any{"key": name})
}

func mismatch(name string, kind catalog.Kind, v any) error {
	return workflow.Errorf(workflow.ErrConfigTypeMismatch,
		fmt.Sprintf("%s: expected %s, got %T", name, kind, v), nil,
		map[string]any{"key": name, "kind": string(kind)})
}

func outOfRange[T int64 | float64](name string, v T, lo, hi *T) error {
	bounds := ""
	switch {
	case lo != nil && hi != nil:
		bounds = fmt.Sprintf("[%v, %v]", *lo, *hi)
	case lo != nil:
		bounds = fmt.Sprintf(">= %v", *lo)
	case hi != nil:
		bounds = fmt.Sprintf("<= %v", *hi)
	}
	return workflow.Errorf(workflow.ErrConfigOutOfRange,
		fmt.Sprintf("%s: %v is outside %s", name, v, bounds), nil, map[string]any{"key": name})
}
