package canon

import (
	"encoding/json"
	"reflect"

	"github.com/datatrails/vaultledger/vaulterr"
)

// FromAny converts a generic Go value (as produced by encoding/json with
// UseNumber, or hand-built map[string]any/[]any trees) into a Value,
// enforcing the scalar and shape restrictions of spec §4.1: no floats,
// no non-string map keys, no duplicate keys, no cycles.
//
// Accepted dynamic types: nil, bool, string, int, int8/16/32/64,
// uint/8/16/32/64 (must fit in int64), map[string]any, map[any]any (keys
// must be strings or this fails ErrNonStringKey), []any, *Obj, Value.
func FromAny(x any) (Value, error) {
	return fromAny(x, map[uintptr]bool{})
}

func fromAny(x any, seen map[uintptr]bool) (Value, error) {
	if v, ok := x.(Value); ok {
		return v, nil
	}
	if x == nil {
		return Null{}, nil
	}

	switch t := x.(type) {
	case bool:
		return Bool(t), nil
	case string:
		return Str(t), nil
	case json.Number:
		return numberToInt(t)
	case int:
		return Int(t), nil
	case int8:
		return Int(t), nil
	case int16:
		return Int(t), nil
	case int32:
		return Int(t), nil
	case int64:
		return Int(t), nil
	case uint:
		return intFromUint64(uint64(t))
	case uint8:
		return Int(t), nil
	case uint16:
		return Int(t), nil
	case uint32:
		return Int(t), nil
	case uint64:
		return intFromUint64(t)
	case float32, float64:
		return nil, vaulterr.ErrInvalidScalar
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Map:
		return mapFromAny(rv, seen)
	case reflect.Slice, reflect.Array:
		return seqFromAny(rv, seen)
	case reflect.Ptr:
		if rv.IsNil() {
			return Null{}, nil
		}
		return seqOrMapFollow(rv, seen)
	default:
		return nil, vaulterr.ErrInvalidScalar
	}
}

func seqOrMapFollow(rv reflect.Value, seen map[uintptr]bool) (Value, error) {
	ptr := rv.Pointer()
	if seen[ptr] {
		return nil, vaulterr.ErrCycleDetected
	}
	seen[ptr] = true
	v, err := fromAny(rv.Elem().Interface(), seen)
	delete(seen, ptr)
	return v, err
}

func intFromUint64(u uint64) (Value, error) {
	if u > (1<<63 - 1) {
		return nil, vaulterr.ErrInvalidScalar
	}
	return Int(int64(u)), nil
}

func mapFromAny(rv reflect.Value, seen map[uintptr]bool) (Value, error) {
	if rv.Kind() == reflect.Map && !rv.IsNil() {
		ptr := rv.Pointer()
		if seen[ptr] {
			return nil, vaulterr.ErrCycleDetected
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	o := NewObj()
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		if k.Kind() != reflect.String {
			return nil, vaulterr.ErrNonStringKey
		}
		val, err := fromAny(iter.Value().Interface(), seen)
		if err != nil {
			return nil, err
		}
		if err := o.Set(k.String(), val); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func seqFromAny(rv reflect.Value, seen map[uintptr]bool) (Value, error) {
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		ptr := rv.Pointer()
		if seen[ptr] {
			return nil, vaulterr.ErrCycleDetected
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	out := make(Seq, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := fromAny(rv.Index(i).Interface(), seen)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
