package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector packs a vector into the FLOAT32 little-endian blob FT indexes expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector unpacks a blob produced by EncodeVector. Trailing bytes that do
// not form a full float are ignored.
func DecodeVector(s string) []float32 {
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return v
}
