package cbor

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// Encode returns the CBOR encoding of v. It never fails; see Append.
func Encode(v Value) []byte {
	return Append(make([]byte, 0, encodedSizeHint(v)), v)
}

// EncodeBase64 returns the standard base64 form of Encode(v), as carried in
// event-stream payloads.
func EncodeBase64(v Value) string {
	return base64.StdEncoding.EncodeToString(Encode(v))
}

// Append appends the CBOR encoding of v to dst and returns the extended
// buffer.
//
// A Value whose kind is outside the model is written as null. This leniency
// is intentional: lenient callers depend on encode never failing.
func Append(dst []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, majorSimple<<5|simpleNull)
	case KindUndefined:
		return append(dst, majorSimple<<5|simpleUndefined)
	case KindBool:
		if v.b {
			return append(dst, majorSimple<<5|simpleTrue)
		}
		return append(dst, majorSimple<<5|simpleFalse)
	case KindInt:
		if v.i < -MaxSafeInteger || v.i > MaxSafeInteger {
			return appendFloat64(dst, float64(v.i))
		}
		if v.i >= 0 {
			return appendHead(dst, majorUnsigned, uint64(v.i))
		}
		return appendHead(dst, majorNegative, uint64(-1-v.i))
	case KindFloat:
		return appendFloat64(dst, v.f)
	case KindBytes:
		dst = appendHead(dst, majorBytes, uint64(len(v.raw)))
		return append(dst, v.raw...)
	case KindText:
		dst = appendHead(dst, majorText, uint64(len(v.s)))
		return append(dst, v.s...)
	case KindArray:
		dst = appendHead(dst, majorArray, uint64(len(v.items)))
		for _, item := range v.items {
			dst = Append(dst, item)
		}
		return dst
	case KindMap:
		// The declared count must match the entries written, so Undefined
		// values are counted out before the head.
		n := 0
		for _, p := range v.pairs {
			if !p.Value.IsUndefined() {
				n++
			}
		}
		dst = appendHead(dst, majorMap, uint64(n))
		for _, p := range v.pairs {
			if p.Value.IsUndefined() {
				continue
			}
			dst = appendHead(dst, majorText, uint64(len(p.Key)))
			dst = append(dst, p.Key...)
			dst = Append(dst, p.Value)
		}
		return dst
	default:
		return append(dst, majorSimple<<5|simpleNull)
	}
}

func appendFloat64(dst []byte, f float64) []byte {
	dst = append(dst, majorSimple<<5|simpleFloat64)
	return binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
}

// encodedSizeHint estimates the encoded size of v for the initial buffer
// capacity. Only the top level is inspected.
func encodedSizeHint(v Value) int {
	switch v.kind {
	case KindBytes:
		return len(v.raw) + 9
	case KindText:
		return len(v.s) + 9
	case KindArray:
		return len(v.items)*2 + 9
	case KindMap:
		return len(v.pairs)*8 + 9
	}
	return 9
}
