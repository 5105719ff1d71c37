package cbor

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxNestingDepth bounds how deeply arrays, maps and tags may nest in decoded
// input.
const MaxNestingDepth = 1024

// Decode decodes the first CBOR item in data. Bytes after that item are
// ignored; use DecodeFirst to get them.
//
// Malformed input returns a *StructuralError.
func Decode(data []byte) (Value, error) {
	v, _, err := DecodeFirst(data)
	return v, err
}

// DecodeFirst decodes the first CBOR item in data and returns it together
// with the unconsumed remainder.
func DecodeFirst(data []byte) (Value, []byte, error) {
	d := decoder{data: data}
	v, err := d.value()
	if err != nil {
		return Value{}, nil, err
	}
	return v, data[d.off:], nil
}

// DecodeBase64 decodes a base64 event-stream payload. Padded and unpadded
// standard base64 are both accepted.
func DecodeBase64(s string) (Value, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		if data, rawErr = base64.RawStdEncoding.DecodeString(s); rawErr != nil {
			return Value{}, fmt.Errorf("cbor: invalid base64 payload: %w", err)
		}
	}
	return Decode(data)
}

// decoder is a read cursor over one input buffer.
type decoder struct {
	data  []byte
	off   int
	depth int
}

func (d *decoder) fail(offset int, err error) error {
	return &StructuralError{Offset: offset, Err: err}
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) readByte() (byte, error) {
	if d.off >= len(d.data) {
		return 0, d.fail(d.off, ErrTruncated)
	}
	b := d.data[d.off]
	d.off++
	return b, nil
}

func (d *decoder) readN(n uint64) ([]byte, error) {
	if n > uint64(d.remaining()) {
		return nil, d.fail(d.off, ErrTruncated)
	}
	b := d.data[d.off : d.off+int(n)]
	d.off += int(n)
	return b, nil
}

// value decodes one item where a break is not allowed.
func (d *decoder) value() (Value, error) {
	start := d.off
	v, isBreak, err := d.item()
	if err != nil {
		return Value{}, err
	}
	if isBreak {
		return Value{}, d.fail(start, ErrUnexpectedBreak)
	}
	return v, nil
}

// item decodes one item. isBreak is true when the item was the break code,
// which only indefinite-length loops may accept.
func (d *decoder) item() (v Value, isBreak bool, err error) {
	start := d.off
	ib, err := d.readByte()
	if err != nil {
		return Value{}, false, err
	}
	major, ai := ib>>5, ib&0x1f
	if major == majorSimple {
		return d.simple(ai, start)
	}

	n, indefinite, err := d.argument(major, ai, start)
	if err != nil {
		return Value{}, false, err
	}

	switch major {
	case majorUnsigned:
		if n > MaxSafeInteger {
			return Float(float64(n)), false, nil
		}
		return Int(int64(n)), false, nil
	case majorNegative:
		if n >= MaxSafeInteger {
			return Float(-1 - float64(n)), false, nil
		}
		return Int(-1 - int64(n)), false, nil
	case majorBytes, majorText:
		v, err = d.str(major, n, indefinite)
	case majorArray:
		v, err = d.array(n, indefinite, start)
	case majorMap:
		v, err = d.mapping(n, indefinite, start)
	case majorTag:
		// The tag number is discarded; only the tagged item is kept.
		if err = d.enter(start); err != nil {
			return Value{}, false, err
		}
		v, err = d.value()
		d.depth--
	}
	return v, false, err
}

// argument resolves the length or magnitude announced by ai.
func (d *decoder) argument(major, ai byte, start int) (n uint64, indefinite bool, err error) {
	if ai < aiOneByte {
		return uint64(ai), false, nil
	}
	if ai == aiIndefinite {
		switch major {
		case majorBytes, majorText, majorArray, majorMap:
			return 0, true, nil
		}
		return 0, false, d.fail(start, ErrIndefiniteNotAllowed)
	}
	size := argumentSize(ai)
	if size < 0 {
		return 0, false, d.fail(start, ErrReservedInfo)
	}
	b, err := d.readN(uint64(size))
	if err != nil {
		return 0, false, err
	}
	switch size {
	case 1:
		return uint64(b[0]), false, nil
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), false, nil
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), false, nil
	default:
		return binary.BigEndian.Uint64(b), false, nil
	}
}

func (d *decoder) simple(ai byte, start int) (Value, bool, error) {
	switch {
	case ai < simpleFalse:
		return Int(int64(ai)), false, nil
	case ai == simpleFalse:
		return Bool(false), false, nil
	case ai == simpleTrue:
		return Bool(true), false, nil
	case ai == simpleNull:
		return Null(), false, nil
	case ai == simpleUndefined:
		return Undefined(), false, nil
	case ai == aiOneByte:
		b, err := d.readByte()
		if err != nil {
			return Value{}, false, err
		}
		return Int(int64(b)), false, nil
	case ai == simpleFloat16:
		b, err := d.readN(2)
		if err != nil {
			return Value{}, false, err
		}
		return Float(halfToFloat64(binary.BigEndian.Uint16(b))), false, nil
	case ai == simpleFloat32:
		b, err := d.readN(4)
		if err != nil {
			return Value{}, false, err
		}
		return Float(float64(math.Float32frombits(binary.BigEndian.Uint32(b)))), false, nil
	case ai == simpleFloat64:
		b, err := d.readN(8)
		if err != nil {
			return Value{}, false, err
		}
		return Float(math.Float64frombits(binary.BigEndian.Uint64(b))), false, nil
	case ai == aiIndefinite:
		return Value{}, true, nil
	default:
		return Value{}, false, d.fail(start, ErrReservedInfo)
	}
}

// str decodes a byte or text string. Indefinite strings are a sequence of
// definite chunks of the same major type, closed by a break.
func (d *decoder) str(major byte, n uint64, indefinite bool) (Value, error) {
	var buf []byte
	if !indefinite {
		b, err := d.readN(n)
		if err != nil {
			return Value{}, err
		}
		buf = b
	} else {
		buf = []byte{}
		for {
			start := d.off
			ib, err := d.readByte()
			if err != nil {
				return Value{}, err
			}
			if ib == breakCode {
				break
			}
			if ib>>5 != major || ib&0x1f == aiIndefinite {
				return Value{}, d.fail(start, ErrInvalidChunk)
			}
			cn, _, err := d.argument(major, ib&0x1f, start)
			if err != nil {
				return Value{}, err
			}
			chunk, err := d.readN(cn)
			if err != nil {
				return Value{}, err
			}
			buf = append(buf, chunk...)
		}
	}

	if major == majorText {
		s := string(buf)
		if !utf8.ValidString(s) {
			s = strings.ToValidUTF8(s, "\uFFFD")
		}
		return Text(s), nil
	}
	return Bytes(append([]byte{}, buf...)), nil
}

func (d *decoder) enter(start int) error {
	d.depth++
	if d.depth > MaxNestingDepth {
		return d.fail(start, ErrMaxDepth)
	}
	return nil
}

func (d *decoder) array(n uint64, indefinite bool, start int) (Value, error) {
	if err := d.enter(start); err != nil {
		return Value{}, err
	}
	defer func() { d.depth-- }()

	if indefinite {
		items := []Value{}
		for {
			v, isBreak, err := d.item()
			if err != nil {
				return Value{}, err
			}
			if isBreak {
				return Array(items...), nil
			}
			items = append(items, v)
		}
	}

	// Every item takes at least one byte.
	if n > uint64(d.remaining()) {
		return Value{}, d.fail(d.off, ErrTruncated)
	}
	items := make([]Value, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := d.value()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return Array(items...), nil
}

func (d *decoder) mapping(n uint64, indefinite bool, start int) (Value, error) {
	if err := d.enter(start); err != nil {
		return Value{}, err
	}
	defer func() { d.depth-- }()

	var pairs []Pair
	if indefinite {
		for {
			keyStart := d.off
			k, isBreak, err := d.item()
			if err != nil {
				return Value{}, err
			}
			if isBreak {
				break
			}
			p, err := d.pair(k, keyStart)
			if err != nil {
				return Value{}, err
			}
			pairs = append(pairs, p)
		}
		return Map(pairs...), nil
	}

	// Every pair takes at least two bytes.
	if n > uint64(d.remaining())/2 {
		return Value{}, d.fail(d.off, ErrTruncated)
	}
	pairs = make([]Pair, 0, n)
	for i := uint64(0); i < n; i++ {
		keyStart := d.off
		k, err := d.value()
		if err != nil {
			return Value{}, err
		}
		p, err := d.pair(k, keyStart)
		if err != nil {
			return Value{}, err
		}
		pairs = append(pairs, p)
	}
	return Map(pairs...), nil
}

// pair decodes the value that follows key k.
func (d *decoder) pair(k Value, keyStart int) (Pair, error) {
	key, ok := keyText(k)
	if !ok {
		return Pair{}, d.fail(keyStart, ErrUnsupportedKey)
	}
	valueStart := d.off
	v, isBreak, err := d.item()
	if err != nil {
		return Pair{}, err
	}
	if isBreak {
		return Pair{}, d.fail(valueStart, ErrMissingMapValue)
	}
	return Pair{Key: key, Value: v}, nil
}

// keyText returns the text form of a map key. Scalar keys are converted the
// way the panel converts object property names; container and byte string
// keys are rejected.
func keyText(k Value) (string, bool) {
	switch k.kind {
	case KindText:
		return k.s, true
	case KindInt:
		return strconv.FormatInt(k.i, 10), true
	case KindFloat:
		return propertyName(k.f), true
	case KindBool:
		return strconv.FormatBool(k.b), true
	case KindNull:
		return "null", true
	case KindUndefined:
		return "undefined", true
	}
	return "", false
}

// propertyName formats f like a JavaScript number used as a property name:
// plain decimal for magnitudes in [1e-6, 1e21), shortest exponent form
// otherwise, and "0" for both zeros.
func propertyName(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + exp
}
