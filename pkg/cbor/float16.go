package cbor

import "github.com/x448/float16"

// halfToFloat64 converts an IEEE 754 half-precision bit pattern to float64.
// Subnormals, infinities and NaN are preserved. Every half value is exactly
// representable in a float32, so the widening is lossless.
func halfToFloat64(bits uint16) float64 {
	return float64(float16.Frombits(bits).Float32())
}
