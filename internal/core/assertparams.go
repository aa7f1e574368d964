package core

import (
	"fmt"
	"reflect"
)

// ParamRule describes one parameter validation rule for AssertParams. It is
// the Go-native home for the source's runtime assertParams({name, required,
// type, min, max, enum}) helper (spec.md §9): model methods are pure
// host-language callables that receive the model explicitly and call this
// free function instead of binding to a dynamic `this`.
type ParamRule struct {
	Name     string
	Required bool
	// Type is the Go kind the value must satisfy (e.g. reflect.String,
	// reflect.Int, reflect.Float64). Zero value (reflect.Invalid) skips the
	// type check.
	Type reflect.Kind
	// Min/Max bound numeric values (inclusive), or the length of a string,
	// slice or array value. Each bound is checked only when its HasMin/
	// HasMax flag is set.
	Min, Max float64
	HasMin   bool
	HasMax   bool
	// Enum, when non-empty, restricts the value to one of the given
	// strings; a non-string value fails the check.
	Enum []string
}

// AssertParams validates values against rules and returns the first
// violation found, or nil if all rules are satisfied. values maps a
// parameter name to its value; a rule whose name is absent from values is
// only an error when Required is true.
func AssertParams(values map[string]any, rules []ParamRule) error {
	for _, rule := range rules {
		v, present := values[rule.Name]
		if !present {
			if rule.Required {
				return fmt.Errorf("missing required parameter %q", rule.Name)
			}
			continue
		}
		if err := assertOne(rule, v); err != nil {
			return err
		}
	}
	return nil
}

func assertOne(rule ParamRule, v any) error {
	rv := reflect.ValueOf(v)
	if rule.Type != reflect.Invalid && rv.Kind() != rule.Type {
		return fmt.Errorf("parameter %q: expected %s, got %s", rule.Name, rule.Type, rv.Kind())
	}
	if len(rule.Enum) > 0 {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("parameter %q: enum check requires a string value", rule.Name)
		}
		valid := false
		for _, e := range rule.Enum {
			if e == s {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("parameter %q: value %q is not one of %v", rule.Name, s, rule.Enum)
		}
	}
	if rule.HasMin || rule.HasMax {
		return assertBounds(rule, rv)
	}
	return nil
}

func assertBounds(rule ParamRule, rv reflect.Value) error {
	var n float64
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n = float64(rv.Int())
	case reflect.Float32, reflect.Float64:
		n = rv.Float()
	case reflect.String:
		n = float64(len(rv.String()))
	case reflect.Slice, reflect.Array:
		n = float64(rv.Len())
	default:
		return fmt.Errorf("parameter %q: min/max check unsupported for kind %s", rule.Name, rv.Kind())
	}
	if rule.HasMin && n < rule.Min {
		return fmt.Errorf("parameter %q: %v is below minimum %v", rule.Name, n, rule.Min)
	}
	if rule.HasMax && n > rule.Max {
		return fmt.Errorf("parameter %q: %v is above maximum %v", rule.Name, n, rule.Max)
	}
	return nil
}
