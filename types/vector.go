package types

import (
	"encoding/binary"
	"math"
)

// Vector is a fixed-length embedding vector.
type Vector = []float32

// VectorBytes returns the in-memory size of a vector in bytes.
func VectorBytes(v Vector) int64 {
	return int64(len(v)) * 4
}

// EncodeVector serializes a vector as little-endian float32 words.
// The encoding is stable and round-trips exactly.
func EncodeVector(v Vector) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes a vector produced by EncodeVector.
func DecodeVector(data []byte) Vector {
	v := make(Vector, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
