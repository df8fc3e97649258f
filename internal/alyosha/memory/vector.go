package memory

import (
	"encoding/binary"
	"fmt"
	"math"
)

// cosineEpsilon keeps the denominator non-zero for degenerate (zero-norm)
// vectors.
const cosineEpsilon = 1e-9

// Cosine computes the cosine similarity of two vectors:
// dot(a,b) / (‖a‖·‖b‖ + ε). It is symmetric in its arguments. Vectors of
// different lengths score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon)
}

// EncodeVector packs a vector as little-endian 32-bit floats, 4 bytes per
// component. This is the persisted layout of the memory.vec column.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks a little-endian float32 blob produced by
// EncodeVector. The blob length must be a multiple of 4.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("memory: vector blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
