// Package props defines the property bags carried by staged nodes and relationships.
package props

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

// Properties maps property keys to scalar or array values.
// Supported values: nil, bool, integers, floats, string, time.Time and slices of those.
type Properties map[string]any

// Merge returns a new map holding defaults overlaid with p. Keys in p win.
func Merge(defaults, p Properties) Properties {
	out := make(Properties, len(defaults)+len(p))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of p. Slice values are copied too.
func Clone(p Properties) Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		if s, ok := v.([]any); ok {
			v = append([]any(nil), s...)
		}
		out[k] = v
	}
	return out
}

// Keys returns the keys of p in sorted order.
func Keys(p Properties) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Project returns the values of p for keys, in key order, and the keys that
// are absent or nil.
func Project(p Properties, keys []string) (values []any, missing []string) {
	values = make([]any, len(keys))
	for i, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			missing = append(missing, k)
		}
		values[i] = v
	}
	return values, missing
}

// Select returns a map holding only the given keys that are present in p.
func Select(p Properties, keys []string) Properties {
	out := make(Properties, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Validate checks that every value in p belongs to the supported value kinds.
func Validate(p Properties) error {
	for _, k := range Keys(p) {
		if err := validateValue(p[k], true); err != nil {
			return ferrors.NewDataError(err.Error()).AddKey(k)
		}
	}
	return nil
}

func validateValue(v any, allowSlice bool) error {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case time.Time, time.Duration:
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Slice, reflect.Array:
		if !allowSlice {
			return fmt.Errorf("nested arrays are not supported")
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// byte arrays are stored as-is
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := validateValue(rv.Index(i).Interface(), false); err != nil {
				return fmt.Errorf("array element %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported property value of type %T", v)
	}
}

// ToList normalizes v into a []any. Scalars become single-element lists, nil stays nil.
func ToList(v any) []any {
	if v == nil {
		return nil
	}
	if l, ok := v.([]any); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// Equal reports whether a and b hold the same keys and equal values.
// Numbers compare by value regardless of their Go type.
func Equal(a, b Properties) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !ValueEqual(av, bv) {
			return false
		}
	}
	return true
}

// ValueEqual compares two property values.
func ValueEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if isList(a) || isList(b) {
		if !isList(a) || !isList(b) {
			return false
		}
		al, bl := ToList(a), ToList(b)
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !ValueEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
