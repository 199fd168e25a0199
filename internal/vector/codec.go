// Package vector provides the embedding blob codec and similarity helpers.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const float32Size = 4

// ErrEmbeddingDimMismatch is returned by Decode when the blob does not hold the declared
// number of float32 values.
var ErrEmbeddingDimMismatch = errors.New("embedding dim mismatch")

// Encode serializes v as little-endian IEEE-754 float32 values and returns the blob
// together with its element count.
func Encode(v []float32) ([]byte, int) {
	out := make([]byte, len(v)*float32Size)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*float32Size:(i+1)*float32Size], math.Float32bits(x))
	}
	return out, len(v)
}

// Decode reinterprets blob as float32 values. When expectedDim is non-zero the blob must
// hold exactly that many values.
func Decode(blob []byte, expectedDim int) ([]float32, error) {
	if len(blob)%float32Size != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of %d", ErrEmbeddingDimMismatch, len(blob), float32Size)
	}
	n := len(blob) / float32Size
	if expectedDim != 0 && n != expectedDim {
		return nil, fmt.Errorf("%w: got=%d expected=%d", ErrEmbeddingDimMismatch, n, expectedDim)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*float32Size : (i+1)*float32Size]))
	}
	return out, nil
}
