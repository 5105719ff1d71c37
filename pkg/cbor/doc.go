// Package cbor implements the binary value codec shared by the control panel
// and the device.
//
// The panel and the device exchange JSON-like values (null, booleans, numbers,
// strings, byte blobs, arrays and string-keyed maps) over HTTP bodies and
// event-stream payloads. Every exchange is encoded as CBOR (RFC 8949) to keep
// payloads small and cheap to parse on the device.
//
// # Value Model
//
// Value is a closed tagged union. Construct values with Null, Undefined, Bool,
// Int, Float, Bytes, Text, Array and Map:
//
//	v := cbor.Map(
//	    cbor.Pair{Key: "mode", Value: cbor.Text("eco")},
//	    cbor.Pair{Key: "limit", Value: cbor.Int(16)},
//	)
//	data := cbor.Encode(v)
//
// Map keys are text strings and keep their insertion order through encode and
// decode.
//
// # Encoding Rules
//
//   - Integers use the shortest head that holds their magnitude.
//   - Floats are always written as 8-byte doubles.
//   - Arrays, maps and strings are always written with a definite length.
//   - Map entries whose value is Undefined are omitted and not counted.
//
// # Decoding Rules
//
// The decoder accepts definite and indefinite lengths, half, single and double
// precision floats, and tags. Tag numbers are discarded and the tagged item is
// returned unchanged.
//
// # Leniency
//
// Two behaviours are deliberate and must be kept for wire compatibility:
//
//   - A value outside the model is encoded as null instead of failing.
//     Encode never returns an error.
//   - Integers beyond ±2^53 are not exact. The encoder writes them as doubles
//     and the decoder returns magnitudes above 2^53 as Float. The loss is not
//     reported.
//
// Malformed input is never coerced to null: Decode returns a *StructuralError.
package cbor
