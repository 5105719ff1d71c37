package cbor

import "encoding/binary"

// Major types (top 3 bits of the initial byte).
const (
	majorUnsigned byte = 0
	majorNegative byte = 1
	majorBytes    byte = 2
	majorText     byte = 3
	majorArray    byte = 4
	majorMap      byte = 5
	majorTag      byte = 6
	majorSimple   byte = 7
)

// Additional information values (low 5 bits of the initial byte).
const (
	aiOneByte    byte = 24
	aiTwoBytes   byte = 25
	aiFourBytes  byte = 26
	aiEightBytes byte = 27
	aiIndefinite byte = 31
)

// Simple values of major type 7.
const (
	simpleFalse     byte = 20
	simpleTrue      byte = 21
	simpleNull      byte = 22
	simpleUndefined byte = 23
	simpleFloat16   byte = 25
	simpleFloat32   byte = 26
	simpleFloat64   byte = 27
)

// breakCode terminates an indefinite-length item.
const breakCode byte = 0xff

// appendHead appends the initial byte for major and the length field n,
// using the shortest form that holds n.
func appendHead(dst []byte, major byte, n uint64) []byte {
	mt := major << 5
	switch {
	case n < uint64(aiOneByte):
		return append(dst, mt|byte(n))
	case n <= 0xff:
		return append(dst, mt|aiOneByte, byte(n))
	case n <= 0xffff:
		dst = append(dst, mt|aiTwoBytes)
		return binary.BigEndian.AppendUint16(dst, uint16(n))
	case n <= 0xffffffff:
		dst = append(dst, mt|aiFourBytes)
		return binary.BigEndian.AppendUint32(dst, uint32(n))
	default:
		dst = append(dst, mt|aiEightBytes)
		dst = binary.BigEndian.AppendUint32(dst, uint32(n>>32))
		return binary.BigEndian.AppendUint32(dst, uint32(n))
	}
}

// argumentSize returns how many bytes follow the initial byte to hold the
// length field for ai, or -1 when ai does not announce a following field.
func argumentSize(ai byte) int {
	switch ai {
	case aiOneByte:
		return 1
	case aiTwoBytes:
		return 2
	case aiFourBytes:
		return 4
	case aiEightBytes:
		return 8
	}
	return -1
}
