package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// VectorToBytes serializes a vector as little-endian float32 values.
// This is the on-disk BLOB format of the tender store and the embedding cache.
func VectorToBytes(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// VectorFromBytes deserializes a little-endian float32 vector.
func VectorFromBytes(data []byte) ([]float32, error) {
	if data == nil {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
