package syncstore

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errNotObject = errors.New("syncstore: value is not an object")

// Normalize converts v into the canonical value shape: nil, bool, int64,
// float64, string, []any or map[string]any. Structs are converted through
// their bson tags. Empty objects and lists normalize to nil, and nil entries
// are dropped from objects, so "absent" has exactly one representation.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		return normalizeUint(uint64(t))
	case uint64:
		return normalizeUint(t)
	case float32:
		return normalizeFloat(float64(t))
	case float64:
		return normalizeFloat(t)
	case primitive.ObjectID:
		return t.Hex(), nil
	case map[string]any:
		return normalizeMap(t)
	case primitive.M:
		return normalizeMap(t)
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = e.Value
		}
		return normalizeMap(m)
	case []any:
		return normalizeList(t)
	case primitive.A:
		return normalizeList(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("syncstore: unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalizeMap(m)
	case reflect.Slice, reflect.Array:
		list := make([]any, rv.Len())
		for i := range list {
			list[i] = rv.Index(i).Interface()
		}
		return normalizeList(list)
	case reflect.Struct:
		raw, err := bson.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("syncstore: encode %T: %w", v, err)
		}
		var m bson.M
		if err := bson.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("syncstore: encode %T: %w", v, err)
		}
		return normalizeMap(m)
	}
	return nil, fmt.Errorf("syncstore: unsupported value type %T", v)
}

func normalizeUint(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("syncstore: integer %d overflows int64", u)
	}
	return int64(u), nil
}

func normalizeFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("syncstore: non-finite number %v", f)
	}
	return f, nil
}

func normalizeMap(in map[string]any) (any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if n != nil {
			out[k] = n
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func normalizeList(in []any) (any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// Clone deep-copies a normalized value.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, c := range t {
			out[k] = Clone(c)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, c := range t {
			out[i] = Clone(c)
		}
		return out
	default:
		return v
	}
}

// Lookup walks a normalized value by path segments and returns what it finds,
// or nil when any segment is missing.
func Lookup(v any, segs []string) any {
	cur := v
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[s]
	}
	return cur
}

// AsInt64 converts a numeric value to int64. Fractional or non-numeric
// values report false.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		if t != math.Trunc(t) || t >= math.MaxInt64 || t < math.MinInt64 {
			return 0, false
		}
		return int64(t), true
	}
	return 0, false
}

// As converts a normalized value to T. Numbers convert between int64, int
// and float64; everything else must already have type T.
func As[T any](v any) (T, bool) {
	var zero T
	if v == nil {
		return zero, false
	}
	if t, ok := v.(T); ok {
		return t, true
	}
	switch p := any(&zero).(type) {
	case *int64:
		n, ok := AsInt64(v)
		*p = n
		return zero, ok
	case *int:
		n, ok := AsInt64(v)
		*p = int(n)
		return zero, ok
	case *float64:
		if n, ok := v.(int64); ok {
			*p = float64(n)
			return zero, true
		}
	}
	return zero, false
}

func decodeInto(v any, out any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return errNotObject
	}
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}
