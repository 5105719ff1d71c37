package cbor

import (
	"encoding/json"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// FromAny converts a dynamically typed Go value into a Value.
//
// Supported inputs are nil, bool, all integer and float widths, string,
// []byte, []any, map[string]any (keys sorted, since Go maps carry no order),
// json.Number, *yaml.Node and Value itself. Anything else converts to Null.
// That fallback is deliberate: encoding telemetry must not fail because one
// field holds an unexpected type.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Value:
		if t == nil {
			return Null()
		}
		return *t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return fromUint(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		if f, err := t.Float64(); err == nil {
			return Float(f)
		}
		return Null()
	case string:
		return Text(t)
	case []byte:
		return Bytes(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, FromAny(item))
		}
		return Array(items...)
	case []Value:
		return Array(t...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]Pair, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, Pair{Key: k, Value: FromAny(t[k])})
		}
		return Map(pairs...)
	case *yaml.Node:
		v, err := FromYAMLNode(t)
		if err != nil {
			return Null()
		}
		return v
	default:
		return Null()
	}
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

// Any converts v into plain Go values: nil, bool, int64, float64, []byte,
// string, []any and map[string]any. Undefined converts to nil and map order
// is lost.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBytes:
		return v.raw
	case KindText:
		return v.s
	case KindArray:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.pairs))
		for _, p := range v.pairs {
			if p.Value.IsUndefined() {
				continue
			}
			out[p.Key] = p.Value.Any()
		}
		return out
	default:
		return nil
	}
}
