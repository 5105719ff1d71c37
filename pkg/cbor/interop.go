package cbor

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"

	fxcbor "github.com/fxamacker/cbor/v2"
)

// Value plugs into structs encoded with fxamacker/cbor, such as the protocol
// log events.
var (
	_ fxcbor.Marshaler   = Value{}
	_ fxcbor.Unmarshaler = (*Value)(nil)
	_ json.Marshaler     = Value{}
)

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	return Encode(v), nil
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Diagnose returns the RFC 8949 diagnostic notation for the first item in
// data.
func Diagnose(data []byte) (string, error) {
	s, _, err := fxcbor.DiagnoseFirst(data)
	return s, err
}

// MarshalJSON implements json.Marshaler. Map order is kept, byte strings
// become base64 text, and Undefined and non-finite floats become null.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.appendJSON(nil)
}

func (v Value) appendJSON(dst []byte) ([]byte, error) {
	switch v.kind {
	case KindBool:
		return strconv.AppendBool(dst, v.b), nil
	case KindInt:
		return strconv.AppendInt(dst, v.i, 10), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return append(dst, "null"...), nil
		}
		return strconv.AppendFloat(dst, v.f, 'g', -1, 64), nil
	case KindBytes:
		return appendJSONString(dst, base64.StdEncoding.EncodeToString(v.raw))
	case KindText:
		return appendJSONString(dst, v.s)
	case KindArray:
		dst = append(dst, '[')
		for i, item := range v.items {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			if dst, err = item.appendJSON(dst); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case KindMap:
		dst = append(dst, '{')
		first := true
		for _, p := range v.pairs {
			if p.Value.IsUndefined() {
				continue
			}
			if !first {
				dst = append(dst, ',')
			}
			first = false
			var err error
			if dst, err = appendJSONString(dst, p.Key); err != nil {
				return nil, err
			}
			dst = append(dst, ':')
			if dst, err = p.Value.appendJSON(dst); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	default:
		return append(dst, "null"...), nil
	}
}

func appendJSONString(dst []byte, s string) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}
