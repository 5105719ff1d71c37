package cbor

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// MaxSafeInteger is the largest integer magnitude a double holds exactly (2^53 - 1).
// Integers beyond it are carried as Float.
const MaxSafeInteger = 1<<53 - 1

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindUndefined
	KindBool
	KindInt
	KindFloat
	KindBytes
	KindText
	KindArray
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is one item of the panel/device value model. The zero Value is Null.
//
// Values are immutable once built; the slices returned by Items, Pairs and
// AsBytes must not be modified.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	raw   []byte
	items []Value
	pairs []Pair
}

// Pair is one entry of a Map.
type Pair struct {
	Key   string
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Undefined returns the "not present" marker. Map entries holding it are
// dropped by the encoder.
func Undefined() Value { return Value{kind: KindUndefined} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value. Magnitudes above MaxSafeInteger cannot be
// represented exactly on the panel side and are returned as Float.
func Int(i int64) Value {
	if i > MaxSafeInteger || i < -MaxSafeInteger {
		return Float(float64(i))
	}
	return Value{kind: KindInt, i: i}
}

// Float returns a double-precision value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bytes returns a byte string value. The slice is not copied.
func Bytes(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBytes, raw: b}
}

// Text returns a text string value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Array returns an ordered array of the given items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Map returns a map holding pairs in the given order. When a key repeats, the
// entry keeps the position of its first occurrence and the value of its last.
func Map(pairs ...Pair) Value {
	return Value{kind: KindMap, pairs: dedupePairs(pairs)}
}

func dedupePairs(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return []Pair{}
	}
	index := make(map[string]int, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if at, ok := index[p.Key]; ok {
			out[at].Value = p.Value
			continue
		}
		index[p.Key] = len(out)
		out = append(out, p)
	}
	return out
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsUndefined reports whether v is Undefined.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

// AsFloat returns the numeric payload of an Int or Float as a float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsText returns the text payload.
func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText
}

// AsBytes returns the byte string payload.
func (v Value) AsBytes() ([]byte, bool) {
	return v.raw, v.kind == KindBytes
}

// Items returns the elements of an Array, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Pairs returns the entries of a Map in order, or nil for any other kind.
func (v Value) Pairs() []Pair {
	if v.kind != KindMap {
		return nil
	}
	return v.pairs
}

// Len returns the number of items of an Array, entries of a Map, or bytes of
// a string. It returns 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindMap:
		return len(v.pairs)
	case KindBytes:
		return len(v.raw)
	case KindText:
		return len(v.s)
	}
	return 0
}

// Get returns the value stored under key in a Map.
func (v Value) Get(key string) (Value, bool) {
	for _, p := range v.Pairs() {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether v and o hold the same variant and payload.
// NaN equals NaN so decoded values compare equal to their originals.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull, KindUndefined:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		if math.IsNaN(v.f) {
			return math.IsNaN(o.f)
		}
		return v.f == o.f
	case KindBytes:
		return string(v.raw) == string(o.raw)
	case KindText:
		return v.s == o.s
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.pairs) != len(o.pairs) {
			return false
		}
		for i := range v.pairs {
			if v.pairs[i].Key != o.pairs[i].Key || !v.pairs[i].Value.Equal(o.pairs[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// String returns v in CBOR diagnostic notation.
func (v Value) String() string {
	var sb strings.Builder
	v.writeDiag(&sb)
	return sb.String()
}

func (v Value) writeDiag(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindUndefined:
		sb.WriteString("undefined")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(formatFloat(v.f))
	case KindBytes:
		sb.WriteString("h'")
		sb.WriteString(hex.EncodeToString(v.raw))
		sb.WriteByte('\'')
	case KindText:
		sb.WriteString(strconv.Quote(v.s))
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeDiag(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, p := range v.pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(p.Key))
			sb.WriteString(": ")
			p.Value.writeDiag(sb)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString("null")
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
