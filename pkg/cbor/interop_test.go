package cbor

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	fxcbor "github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

func TestEncodeReadableByFxamacker(t *testing.T) {
	v := Map(
		Pair{Key: "n", Value: Int(-7)},
		Pair{Key: "s", Value: Text("x")},
		Pair{Key: "f", Value: Float(0.25)},
		Pair{Key: "l", Value: Array(Int(1<<33), Bool(true))},
	)

	var got map[string]any
	if err := fxcbor.Unmarshal(Encode(v), &got); err != nil {
		t.Fatalf("fxamacker Unmarshal failed: %v", err)
	}
	if got["n"] != int64(-7) {
		t.Errorf("n = %#v, want int64(-7)", got["n"])
	}
	if got["s"] != "x" {
		t.Errorf("s = %#v, want \"x\"", got["s"])
	}
	if got["f"] != 0.25 {
		t.Errorf("f = %#v, want 0.25", got["f"])
	}
	list, ok := got["l"].([]any)
	if !ok || len(list) != 2 || list[0] != uint64(1<<33) || list[1] != true {
		t.Errorf("l = %#v", got["l"])
	}
}

func TestDecodeFxamackerOutput(t *testing.T) {
	half, err := fxcbor.EncOptions{ShortestFloat: fxcbor.ShortestFloat16}.EncMode()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		enc  func() ([]byte, error)
		want Value
	}{
		{"float32", func() ([]byte, error) { return fxcbor.Marshal(float32(1.5)) }, Float(1.5)},
		{"shortest float16", func() ([]byte, error) { return half.Marshal(1.0) }, Float(1)},
		{"string map", func() ([]byte, error) { return fxcbor.Marshal(map[string]int{"a": 1}) }, Map(Pair{Key: "a", Value: Int(1)})},
		{"byte slice", func() ([]byte, error) { return fxcbor.Marshal([]byte{9, 8}) }, Bytes([]byte{9, 8})},
		{"tagged", func() ([]byte, error) { return fxcbor.Marshal(fxcbor.Tag{Number: 1000, Content: "v"}) }, Text("v")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.enc()
			if err != nil {
				t.Fatalf("fxamacker Marshal failed: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode(%x) failed: %v", data, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Decode(%x) = %v, want %v", data, got, tt.want)
			}
		})
	}
}

func TestValueAsStructField(t *testing.T) {
	type envelope struct {
		ID   int   `cbor:"1,keyasint"`
		Body Value `cbor:"2,keyasint"`
	}

	in := envelope{ID: 3, Body: Map(Pair{Key: "b", Value: Int(1)}, Pair{Key: "a", Value: Int(2)})}
	data, err := fxcbor.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out envelope
	if err := fxcbor.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.ID != 3 {
		t.Errorf("ID = %d, want 3", out.ID)
	}
	if !out.Body.Equal(in.Body) {
		t.Errorf("Body = %v, want %v", out.Body, in.Body)
	}
	if out.Body.Pairs()[0].Key != "b" {
		t.Error("map order lost through struct field")
	}
}

func TestDiagnose(t *testing.T) {
	got, err := Diagnose(Encode(Array(Int(1), Text("x"))))
	if err != nil {
		t.Fatalf("Diagnose failed: %v", err)
	}
	if got != `[1, "x"]` {
		t.Errorf("Diagnose = %q, want %q", got, `[1, "x"]`)
	}
}

func TestValueString(t *testing.T) {
	v := Map(
		Pair{Key: "a", Value: Array(Int(1), Float(2), Float(math.Inf(-1)))},
		Pair{Key: "b", Value: Bytes([]byte{0xca, 0xfe})},
		Pair{Key: "c", Value: Undefined()},
		Pair{Key: "d", Value: Null()},
	)
	want := `{"a": [1, 2.0, -Infinity], "b": h'cafe', "c": undefined, "d": null}`
	if got := v.String(); got != want {
		t.Errorf("String = %s, want %s", got, want)
	}
}

func TestMarshalJSON(t *testing.T) {
	v := Map(
		Pair{Key: "b", Value: Int(1)},
		Pair{Key: "a", Value: Text("x")},
		Pair{Key: "u", Value: Undefined()},
		Pair{Key: "f", Value: Float(math.NaN())},
		Pair{Key: "raw", Value: Bytes([]byte{1, 2, 3})},
		Pair{Key: "l", Value: Array(Bool(true), Null(), Float(0.5))},
	)

	got, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	want := `{"b":1,"a":"x","f":null,"raw":"AQID","l":[true,null,0.5]}`
	if string(got) != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
b: 1
a: [x, 2.5, true, ~]
raw: !!binary AQID
gone: !undefined
big: 9007199254740993
hex: 0x1f
`
	v, err := ParseYAML([]byte(doc))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}

	want := Map(
		Pair{Key: "b", Value: Int(1)},
		Pair{Key: "a", Value: Array(Text("x"), Float(2.5), Bool(true), Null())},
		Pair{Key: "raw", Value: Bytes([]byte{1, 2, 3})},
		Pair{Key: "gone", Value: Undefined()},
		Pair{Key: "big", Value: Float(9007199254740992)},
		Pair{Key: "hex", Value: Int(31)},
	)
	if !v.Equal(want) {
		t.Errorf("ParseYAML = %v, want %v", v, want)
	}

	if got := Encode(v); got[0] != 0xa5 {
		t.Errorf("map head = %#x, want 0xa5 (undefined entry dropped)", got[0])
	}
}

func TestParseYAMLJSONInput(t *testing.T) {
	v, err := ParseYAML([]byte(`{"z": 1, "a": {"k": "v"}}`))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}
	if v.Pairs()[0].Key != "z" {
		t.Errorf("first key = %q, want z", v.Pairs()[0].Key)
	}
}

func TestParseYAMLEmptyIsNull(t *testing.T) {
	v, err := ParseYAML(nil)
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("ParseYAML(empty) = %v, want null", v)
	}
}

func TestParseYAMLRejectsComplexKeys(t *testing.T) {
	if _, err := ParseYAML([]byte("? [a, b]\n: 1\n")); err == nil {
		t.Error("expected error for sequence key")
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	v := Map(
		Pair{Key: "z", Value: Text("true")},
		Pair{Key: "y", Value: Int(-3)},
		Pair{Key: "x", Value: Array(Float(1.25), Float(math.Inf(1)), Bytes([]byte("hi")))},
		Pair{Key: "w", Value: Map(Pair{Key: "n", Value: Null()})},
		Pair{Key: "v", Value: Undefined()},
	)

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("yaml.Marshal failed: %v", err)
	}
	if !strings.HasPrefix(string(out), "z: \"true\"") {
		t.Errorf("text that looks like a bool must stay quoted:\n%s", out)
	}

	back, err := ParseYAML(out)
	if err != nil {
		t.Fatalf("ParseYAML failed: %v\n%s", err, out)
	}
	if !back.Equal(v) {
		t.Errorf("round trip = %v, want %v\n%s", back, v, out)
	}
}

type opaque struct{}

func TestFromAny(t *testing.T) {
	in := map[string]any{
		"z": 1,
		"a": []any{"x", uint64(1 << 63), int8(-2), float32(0.5)},
		"f": opaque{},
		"n": nil,
		"j": json.Number("12"),
		"b": []byte{7},
	}

	want := Map(
		Pair{Key: "a", Value: Array(Text("x"), Float(9223372036854775808), Int(-2), Float(0.5))},
		Pair{Key: "b", Value: Bytes([]byte{7})},
		Pair{Key: "f", Value: Null()},
		Pair{Key: "j", Value: Int(12)},
		Pair{Key: "n", Value: Null()},
		Pair{Key: "z", Value: Int(1)},
	)

	if got := FromAny(in); !got.Equal(want) {
		t.Errorf("FromAny = %v, want %v", got, want)
	}
}

func TestFromAnyUnsupportedEncodesNull(t *testing.T) {
	for _, x := range []any{opaque{}, make(chan int), func() {}, &struct{ A int }{1}} {
		if got := Encode(FromAny(x)); len(got) != 1 || got[0] != 0xf6 {
			t.Errorf("Encode(FromAny(%T)) = %x, want f6", x, got)
		}
	}
}

func TestAny(t *testing.T) {
	v := Map(
		Pair{Key: "a", Value: Array(Int(1), Float(1.5), Text("s"))},
		Pair{Key: "u", Value: Undefined()},
	)
	got, ok := v.Any().(map[string]any)
	if !ok {
		t.Fatalf("Any() = %T, want map[string]any", v.Any())
	}
	if _, present := got["u"]; present {
		t.Error("undefined entries must be dropped")
	}
	list := got["a"].([]any)
	if list[0] != int64(1) || list[1] != 1.5 || list[2] != "s" {
		t.Errorf("a = %#v", list)
	}
}

func TestMapDeduplicatesKeys(t *testing.T) {
	v := Map(
		Pair{Key: "a", Value: Int(1)},
		Pair{Key: "b", Value: Int(2)},
		Pair{Key: "a", Value: Int(3)},
	)
	if v.Len() != 2 {
		t.Fatalf("Len = %d, want 2", v.Len())
	}
	if got, _ := v.Get("a"); !got.Equal(Int(3)) {
		t.Errorf("a = %v, want 3", got)
	}
	if v.Pairs()[0].Key != "a" {
		t.Error("duplicate key should keep its first position")
	}
}
