package collection

import (
	"fmt"
	"reflect"
)

// ElementsAs returns the elements of c converted to E. Numeric values are
// converted between integer and float widths; other values must be
// assignable to E. A nil element becomes the zero E.
func ElementsAs[E any](c *Collection) ([]E, error) {
	elems := c.Elements()
	out := make([]E, len(elems))
	for i, v := range elems {
		e, err := Convert[E](v)
		if err != nil {
			return nil, fmt.Errorf("%s element %d: %w", c.key, i, err)
		}
		out[i] = e
	}
	return out, nil
}

// EntriesAs returns the entries of a Map collection as a Go map.
func EntriesAs[K comparable, V any](c *Collection) (map[K]V, error) {
	out := make(map[K]V, len(c.keys))
	for _, en := range c.Entries() {
		k, err := Convert[K](en.Key)
		if err != nil {
			return nil, fmt.Errorf("%s key: %w", c.key, err)
		}
		v, err := Convert[V](en.Value)
		if err != nil {
			return nil, fmt.Errorf("%s value %v: %w", c.key, en.Key, err)
		}
		out[k] = v
	}
	return out, nil
}

// Convert converts a single element value to E under the rules of
// ElementsAs. Integers convert to bool as non-zero, and a pointer E
// receives the address of the converted value.
func Convert[E any](v any) (E, error) {
	var zero E
	if v == nil {
		return zero, nil
	}
	if e, ok := v.(E); ok {
		return e, nil
	}
	target := reflect.TypeOf((*E)(nil)).Elem()
	rv, err := convertValue(reflect.ValueOf(v), target)
	if err != nil {
		return zero, err
	}
	return rv.Interface().(E), nil //nolint:forcetypeassert // converted to E
}

func convertValue(rv reflect.Value, target reflect.Type) (reflect.Value, error) {
	switch {
	case rv.Type().AssignableTo(target):
		return rv, nil
	case target.Kind() == reflect.Pointer:
		ev, err := convertValue(rv, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(ev)
		return p, nil
	case numeric(rv.Kind()) && numeric(target.Kind()):
		return rv.Convert(target), nil
	case numeric(rv.Kind()) && target.Kind() == reflect.Bool:
		return reflect.ValueOf(!rv.IsZero()).Convert(target), nil
	case rv.Kind() == target.Kind() && rv.Type().ConvertibleTo(target):
		return rv.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("collection: cannot convert %s to %s", rv.Type(), target)
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
