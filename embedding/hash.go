// Package embedding provides embedding port implementations. HashEmbedder is a
// deterministic, dependency free embedder for tests and offline runs; real
// providers live in sub-packages.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/hupe1980/echokernel/core"
)

// HashEmbedder maps text to a bag-of-words vector using feature hashing.
// Texts sharing words produce vectors with positive cosine similarity.
type HashEmbedder struct {
	dims int
}

var _ core.Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a HashEmbedder producing vectors of dims length (default 256).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector length.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed implements core.Embedder. The result is L2 normalized; empty text
// yields the zero vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[int(f.Sum32()%uint32(h.dims))]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}
