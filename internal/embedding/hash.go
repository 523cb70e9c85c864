package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/pgvector/pgvector-go"
)

// HashEmbedder is a deterministic feature-hashing embedder that needs no
// model. Each word and each adjacent word pair is hashed into a signed
// bucket and the result is L2-normalized.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder. Non-positive dimensions use DefaultDimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dimension() int { return h.dim }

func (h *HashEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if err := ctx.Err(); err != nil {
		return pgvector.Vector{}, err
	}
	return h.textToVector(text), nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	vectors := make([]pgvector.Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = h.textToVector(text)
	}
	return vectors, nil
}

func (h *HashEmbedder) textToVector(text string) pgvector.Vector {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	vector := make([]float32, h.dim)
	for i, word := range words {
		h.add(vector, word, 1)
		if i > 0 {
			h.add(vector, words[i-1]+" "+word, 0.5)
		}
	}

	var magnitude float64
	for _, val := range vector {
		magnitude += float64(val) * float64(val)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude > 0 {
		for i := range vector {
			vector[i] = float32(float64(vector[i]) / magnitude)
		}
	}
	return pgvector.NewVector(vector)
}

func (h *HashEmbedder) add(vector []float32, feature string, weight float32) {
	sum := hashWord(feature)
	bucket := int(sum % uint32(h.dim))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vector[bucket] += weight
}

func hashWord(word string) uint32 {
	f := fnv.New32a()
	f.Write([]byte(word))
	return f.Sum32()
}
