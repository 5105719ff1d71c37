package cbor

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestDecodeVectors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Value
	}{
		{"uint inline", "17", Int(23)},
		{"uint 1 byte", "1818", Int(24)},
		{"uint 2 bytes", "190100", Int(256)},
		{"uint 4 bytes", "1a00010000", Int(65536)},
		{"uint 8 bytes", "1b0000000100000000", Int(1 << 32)},
		{"uint beyond 2^53", "1bffffffffffffffff", Float(18446744073709551615)},
		{"negative", "3901f3", Int(-500)},
		{"negative max safe", "3b001ffffffffffffe", Int(-MaxSafeInteger)},
		{"negative beyond safe", "3b001fffffffffffff", Float(-9007199254740992)},
		{"false", "f4", Bool(false)},
		{"true", "f5", Bool(true)},
		{"null", "f6", Null()},
		{"undefined", "f7", Undefined()},
		{"simple inline", "f0", Int(16)},
		{"simple extension", "f8ff", Int(255)},
		{"float16 one", "f93c00", Float(1)},
		{"float16 zero", "f90000", Float(0)},
		{"float16 negative", "f9c400", Float(-4)},
		{"float16 max", "f97bff", Float(65504)},
		{"float16 smallest subnormal", "f90001", Float(5.960464477539063e-8)},
		{"float16 +inf", "f97c00", Float(math.Inf(1))},
		{"float16 -inf", "f9fc00", Float(math.Inf(-1))},
		{"float16 nan", "f97e00", Float(math.NaN())},
		{"float32", "fa47c35000", Float(100000)},
		{"float64", "fb3ff199999999999a", Float(1.1)},
		{"bytes", "4401020304", Bytes([]byte{1, 2, 3, 4})},
		{"text", "6449455446", Text("IETF")},
		{"array", "83010203", Array(Int(1), Int(2), Int(3))},
		{"map", "a26161016162820203", Map(
			Pair{Key: "a", Value: Int(1)},
			Pair{Key: "b", Value: Array(Int(2), Int(3))},
		)},
		{"indefinite text", "7f626162626364ff", Text("abcd")},
		{"empty indefinite text", "7fff", Text("")},
		{"indefinite bytes", "5f42010241 03ff", Bytes([]byte{1, 2, 3})},
		{"indefinite array", "9f018202039f0405ffff", Array(
			Int(1), Array(Int(2), Int(3)), Array(Int(4), Int(5)),
		)},
		{"empty indefinite array", "9fff", Array()},
		{"indefinite map", "bf61610161629f02ffff", Map(
			Pair{Key: "a", Value: Int(1)},
			Pair{Key: "b", Value: Array(Int(2))},
		)},
		{"tag around text", "c074323031332d30332d32315432303a30343a30305a", Text("2013-03-21T20:04:00Z")},
		{"tag around uint", "c11a514b67b0", Int(1363896240)},
		{"two-byte tag number", "d820656869676874", Text("hight")},
		{"nested tags", "c6c7f5", Bool(true)},
		{"integer key", "a10102", Map(Pair{Key: "1", Value: Int(2)})},
		{"negative key", "a12001", Map(Pair{Key: "-1", Value: Int(1)})},
		{"bool key", "a1f501", Map(Pair{Key: "true", Value: Int(1)})},
		{"negative zero key", "a1fb800000000000000001", Map(Pair{Key: "0", Value: Int(1)})},
		{"large float key", "a1fb4415af1d78b58c4001", Map(Pair{Key: "100000000000000000000", Value: Int(1)})},
		{"duplicate keys keep last value", "a3616101616202616103", Map(
			Pair{Key: "a", Value: Int(3)},
			Pair{Key: "b", Value: Int(2)},
		)},
		{"invalid utf-8 replaced", "6361ff62", Text("a\uFFFDb")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := mustHex(t, stripSpaces(tt.in))
			got, err := Decode(in)
			if err != nil {
				t.Fatalf("Decode(%s) failed: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Decode(%s) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPropertyName(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1.5, "1.5"},
		{-2.25, "-2.25"},
		{1e20, "100000000000000000000"},
		{1e21, "1e+21"},
		{-1.5e300, "-1.5e+300"},
		{0.000001, "0.000001"},
		{1e-7, "1e-7"},
		{1.25e-10, "1.25e-10"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}

	for _, tt := range tests {
		if got := propertyName(tt.in); got != tt.want {
			t.Errorf("propertyName(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func stripSpaces(s string) string {
	return string(bytes.ReplaceAll([]byte(s), []byte(" "), nil))
}

func TestHalfToFloat64(t *testing.T) {
	tests := []struct {
		bits uint16
		want float64
	}{
		{0x3c00, 1},
		{0x0000, 0},
		{0x8000, math.Copysign(0, -1)},
		{0x3555, 0.333251953125},
		{0x0400, 6.103515625e-05},
		{0x03ff, 6.097555160522461e-05},
		{0x7c00, math.Inf(1)},
		{0xfc00, math.Inf(-1)},
	}

	for _, tt := range tests {
		got := halfToFloat64(tt.bits)
		if got != tt.want || math.Signbit(got) != math.Signbit(tt.want) {
			t.Errorf("halfToFloat64(%#04x) = %v, want %v", tt.bits, got, tt.want)
		}
	}

	for _, bits := range []uint16{0x7e00, 0x7c01, 0xfe00} {
		if got := halfToFloat64(bits); !math.IsNaN(got) {
			t.Errorf("halfToFloat64(%#04x) = %v, want NaN", bits, got)
		}
	}
}

func TestDecodeStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty input", "", ErrTruncated},
		{"truncated 1-byte length", "18", ErrTruncated},
		{"truncated 2-byte length", "1901", ErrTruncated},
		{"truncated 8-byte length", "1b000000", ErrTruncated},
		{"truncated text", "6261", ErrTruncated},
		{"truncated array", "8201", ErrTruncated},
		{"truncated map value", "a16161", ErrTruncated},
		{"truncated float16", "f93c", ErrTruncated},
		{"truncated float64", "fb3ff1", ErrTruncated},
		{"truncated simple extension", "f8", ErrTruncated},
		{"unterminated indefinite text", "7f6161", ErrTruncated},
		{"unterminated indefinite array", "9f01", ErrTruncated},
		{"huge declared array", "9bffffffffffffffff", ErrTruncated},
		{"huge declared map", "bb7fffffffffffffff00", ErrTruncated},
		{"huge declared bytes", "5bffffffffffffffff", ErrTruncated},
		{"indefinite uint", "1f", ErrIndefiniteNotAllowed},
		{"indefinite negative", "3f", ErrIndefiniteNotAllowed},
		{"indefinite tag", "df", ErrIndefiniteNotAllowed},
		{"reserved ai", "1c", ErrReservedInfo},
		{"reserved simple", "fc", ErrReservedInfo},
		{"top-level break", "ff", ErrUnexpectedBreak},
		{"break in definite array", "8201ff", ErrUnexpectedBreak},
		{"break after tag", "c0ff", ErrUnexpectedBreak},
		{"break as definite map key", "a1ff00", ErrUnexpectedBreak},
		{"indefinite map key without value", "bf6161ff", ErrMissingMapValue},
		{"definite map key without value", "a16161ff", ErrMissingMapValue},
		{"wrong chunk type", "7f4100ff", ErrInvalidChunk},
		{"nested indefinite chunk", "7f7fffff", ErrInvalidChunk},
		{"bytes key", "a1420000f6", ErrUnsupportedKey},
		{"array key", "a18001", ErrUnsupportedKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(mustHex(t, tt.in))
			if err == nil {
				t.Fatalf("Decode(%s) = %v, want error", tt.in, v)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%s) error = %v, want %v", tt.in, err, tt.want)
			}
			if !IsStructural(err) {
				t.Errorf("Decode(%s) error %T is not a *StructuralError", tt.in, err)
			}
		})
	}
}

func TestDecodeErrorOffset(t *testing.T) {
	_, err := Decode(mustHex(t, "83010218"))
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StructuralError", err)
	}
	if se.Offset != 4 {
		t.Errorf("Offset = %d, want 4", se.Offset)
	}
}

func TestDecodeNestingLimit(t *testing.T) {
	deep := append(bytes.Repeat([]byte{0x81}, MaxNestingDepth), 0x00)
	if _, err := Decode(deep); err != nil {
		t.Fatalf("depth %d should decode: %v", MaxNestingDepth, err)
	}

	tooDeep := append(bytes.Repeat([]byte{0x81}, MaxNestingDepth+1), 0x00)
	if _, err := Decode(tooDeep); !errors.Is(err, ErrMaxDepth) {
		t.Errorf("depth %d error = %v, want ErrMaxDepth", MaxNestingDepth+1, err)
	}

	tags := append(bytes.Repeat([]byte{0xc0}, MaxNestingDepth+1), 0x00)
	if _, err := Decode(tags); !errors.Is(err, ErrMaxDepth) {
		t.Errorf("nested tags error = %v, want ErrMaxDepth", err)
	}
}

func TestDecodeFirstReturnsRest(t *testing.T) {
	v, rest, err := DecodeFirst(mustHex(t, "0102f6"))
	if err != nil {
		t.Fatalf("DecodeFirst failed: %v", err)
	}
	if !v.Equal(Int(1)) {
		t.Errorf("value = %v, want 1", v)
	}
	if !bytes.Equal(rest, []byte{0x02, 0xf6}) {
		t.Errorf("rest = %x, want 02f6", rest)
	}

	// Decode ignores the trailing items.
	v, err = Decode(mustHex(t, "0102"))
	if err != nil || !v.Equal(Int(1)) {
		t.Errorf("Decode = %v, %v; want 1, nil", v, err)
	}
}

func TestDecodeBytesDoNotAliasInput(t *testing.T) {
	in := mustHex(t, "43010203")
	v, err := Decode(in)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	in[1] = 0xff
	b, _ := v.AsBytes()
	if b[0] != 0x01 {
		t.Error("decoded byte string shares memory with the input")
	}
}

func TestDecodeBase64(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"padded", "oWFhAQ=="},
		{"unpadded", "oWFhAQ"},
		{"surrounding whitespace", " oWFhAQ==\n"},
	}

	want := Map(Pair{Key: "a", Value: Int(1)})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.in)
			if err != nil {
				t.Fatalf("DecodeBase64 failed: %v", err)
			}
			if !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}

	if _, err := DecodeBase64("not base64!"); err == nil {
		t.Error("expected error for invalid base64")
	} else if IsStructural(err) {
		t.Error("invalid base64 should not be reported as a structural error")
	}

	// Valid base64 around truncated CBOR is structural.
	if _, err := DecodeBase64("GQ=="); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated payload error = %v, want ErrTruncated", err)
	}
}
