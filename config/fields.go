package config

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	"golang.org/x/exp/constraints"
)

// object is a decoded JSON/YAML mapping together with its document path.
type object struct {
	path string
	m    map[string]any
}

func asObject(v any, path string) (object, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return object{}, parseErrf(path, "expected an object, got %s", kindOf(v))
	}
	return object{path: path, m: m}, nil
}

// check rejects any field not listed in allowed.
func (o object) check(allowed ...string) error {
	var unknown []string
	for name := range o.m {
		if !slices.Contains(allowed, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return parseErrf(o.path, "unsupported field(s) %q, supported: %v", unknown, allowed)
	}
	return nil
}

func (o object) field(name string) string {
	if o.path == "" {
		return name
	}
	return o.path + "." + name
}

// get returns the raw value of a field. A null value counts as absent.
func (o object) get(name string) (any, bool) {
	v, ok := o.m[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (o object) str(name string, required bool) (string, bool, error) {
	v, ok := o.get(name)
	if !ok {
		if required {
			return "", false, parseErrf(o.path, "missing required field %q", name)
		}
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, parseErrf(o.field(name), "expected a string, got %s", kindOf(v))
	}
	return s, true, nil
}

// integer decodes an optional numeric field into T, rejecting fractions and
// values outside of T's range.
func integer[T constraints.Integer](o object, name string) (T, bool, error) {
	v, ok := o.get(name)
	if !ok {
		return 0, false, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, false, parseErrf(o.field(name), "%v", err)
	}
	t := T(n)
	if int64(t) != n || (n < 0) != (t < 0) {
		return 0, false, parseErrf(o.field(name), "value %d out of range", n)
	}
	return t, true, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %s", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %s", kindOf(v))
	}
}

// each calls fn for a single object or for every element of a list.
func each(v any, path string, fn func(elem any, path string) error) error {
	switch v := v.(type) {
	case map[string]any:
		return fn(v, path)
	case []any:
		for i, elem := range v {
			if err := fn(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return parseErrf(path, "expected an object or a list of objects, got %s", kindOf(v))
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	case int, int32, int64, uint64, float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
