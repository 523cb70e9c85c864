package vectorindex

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pgvector/pgvector-go"
	"github.com/sourcegraph/conc/pool"
	"gopkg.in/yaml.v3"
)

// Metadata keys written by corpus ingestion and read by retrieval.
const (
	MetaSource      = "source"
	MetaDestination = "destination"
	MetaLocations   = "locations"
	MetaCategories  = "categories"
)

// CorpusFile is a YAML knowledge corpus.
type CorpusFile struct {
	Name      string           `yaml:"name"`
	Documents []CorpusDocument `yaml:"documents"`
}

// CorpusDocument is one travel snippet in a corpus file.
type CorpusDocument struct {
	ID          string   `yaml:"id"`
	Text        string   `yaml:"text"`
	Source      string   `yaml:"source"`
	Destination string   `yaml:"destination"`
	Locations   []string `yaml:"locations"`
	Categories  []string `yaml:"categories"`
}

// LoadCorpusFile parses a YAML corpus file.
func LoadCorpusFile(path string) (*CorpusFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()
	var corpus CorpusFile
	if err := yaml.NewDecoder(f).Decode(&corpus); err != nil {
		return nil, fmt.Errorf("failed to parse corpus YAML: %w", err)
	}
	for i, d := range corpus.Documents {
		if d.Text == "" {
			return nil, fmt.Errorf("corpus document %d has no text", i)
		}
	}
	return &corpus, nil
}

// IndexDocuments converts corpus entries to index documents.
func (c *CorpusFile) IndexDocuments() []Document {
	docs := make([]Document, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = Document{
			ID:   d.ID,
			Text: d.Text,
			Metadata: map[string]interface{}{
				MetaSource:      d.Source,
				MetaDestination: d.Destination,
				MetaLocations:   d.Locations,
				MetaCategories:  d.Categories,
			},
		}
	}
	return docs
}

// Ingest embeds documents in batches of batchSize using up to workers
// goroutines and appends them to the index in their original order.
func Ingest(ctx context.Context, idx *Index, docs []Document, batchSize, workers int) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	if workers <= 0 {
		workers = 4
	}

	vectors := make([]pgvector.Vector, len(docs))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(workers)
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		p.Go(func(ctx context.Context) error {
			texts := make([]string, 0, end-start)
			for _, d := range docs[start:end] {
				texts = append(texts, d.Text)
			}
			batch, err := idx.Embedder().EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	ids, err := idx.AddVectors(docs, vectors)
	if err != nil {
		return nil, err
	}
	log.Printf("Corpus ingested (documents: %d, batch_size: %d)", len(ids), batchSize)
	return ids, nil
}
