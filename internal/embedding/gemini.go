package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/api/option"
)

// GeminiEmbedder uses a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGeminiEmbedder creates a Gemini embedder; the default model is text-embedding-004.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim int) (*GeminiEmbedder, error) {
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dim: dim}, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.dim }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		return pgvector.Vector{}, fmt.Errorf("gemini embed: empty response")
	}
	if err := checkDimension(resp.Embedding.Values, e.dim); err != nil {
		return pgvector.Vector{}, err
	}
	return pgvector.NewVector(resp.Embedding.Values), nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no input texts provided")
	}
	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini batch embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	vectors := make([]pgvector.Vector, len(texts))
	for i, emb := range resp.Embeddings {
		if err := checkDimension(emb.Values, e.dim); err != nil {
			return nil, err
		}
		vectors[i] = pgvector.NewVector(emb.Values)
	}
	return vectors, nil
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
