// Package embedding maps text to fixed-dimension dense vectors.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// DefaultDimension is the vector size of the hash embedder.
const DefaultDimension = 384

// Embedder turns text into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error)
	Dimension() int
}

// Settings selects and configures an Embedder.
type Settings struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
}

// New creates an Embedder for the configured provider. An empty provider
// selects the hash embedder.
func New(ctx context.Context, s Settings) (Embedder, error) {
	switch strings.ToLower(s.Provider) {
	case "", "hash":
		return NewHashEmbedder(s.Dimension), nil
	case "openai", "ollama":
		return NewOpenAIEmbedder(s.APIKey, s.BaseURL, s.Model, s.Dimension), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, s.APIKey, s.Model, s.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", s.Provider)
	}
}

func checkDimension(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(v), want)
	}
	return nil
}
