// Package vectorindex is an append-only, in-memory nearest-neighbour index
// over embedded documents with two-artifact persistence.
//
// Searches read an immutable snapshot and never lock. Mutations (Add, Reset,
// Load, Save) are serialized by a single writer mutex and publish a new
// snapshot when they finish.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pgvector/pgvector-go"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/embedding"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Document is an entry to be added to the index.
type Document struct {
	ID       string                 `json:"id" yaml:"id"`
	Text     string                 `json:"text" yaml:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Entry is a stored document with its embedding.
type Entry struct {
	Document
	Vector pgvector.Vector `json:"-"`
}

// Result is a search hit.
type Result struct {
	Entry
	Distance   float64 // squared L2, as a flat L2 index reports it
	Similarity float64
}

type snapshot struct {
	dim     int
	entries []Entry
	byID    map[string]int
}

func (s *snapshot) with(entries []Entry) *snapshot {
	next := &snapshot{
		dim:     s.dim,
		entries: make([]Entry, 0, len(s.entries)+len(entries)),
		byID:    make(map[string]int, len(s.entries)+len(entries)),
	}
	next.entries = append(next.entries, s.entries...)
	next.entries = append(next.entries, entries...)
	for i, e := range next.entries {
		next.byID[e.ID] = i
	}
	return next
}

// Index is the similarity index. The zero value is not usable; call New.
type Index struct {
	embedder embedding.Embedder
	mu       sync.Mutex
	snap     atomic.Pointer[snapshot]
}

// New creates an empty index that embeds text with embedder.
func New(embedder embedding.Embedder) *Index {
	idx := &Index{embedder: embedder}
	idx.snap.Store(&snapshot{dim: embedder.Dimension(), byID: map[string]int{}})
	return idx
}

// Embedder returns the embedder used for documents and queries.
func (idx *Index) Embedder() embedding.Embedder { return idx.embedder }

// Count returns the number of stored documents.
func (idx *Index) Count() int {
	return len(idx.snap.Load().entries)
}

// Dimension returns the vector dimension, or 0 before the first insert
// when the embedder does not declare one.
func (idx *Index) Dimension() int {
	return idx.snap.Load().dim
}

// Get returns a stored document by ID.
func (idx *Index) Get(id string) (Document, bool) {
	s := idx.snap.Load()
	i, ok := s.byID[id]
	if !ok {
		return Document{}, false
	}
	return s.entries[i].Document, true
}

// Add embeds and appends documents, returning their IDs. Documents without
// an ID are assigned doc_<n> by position.
func (idx *Index) Add(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return idx.AddVectors(docs, vectors)
}

// AddVectors appends documents with precomputed vectors.
func (idx *Index) AddVectors(docs []Document, vectors []pgvector.Vector) ([]string, error) {
	if len(docs) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d documents", len(vectors), len(docs))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	dim := cur.dim
	entries := make([]Entry, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		v := vectors[i].Slice()
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: document %d has %d, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
		if d.ID == "" {
			d.ID = fmt.Sprintf("doc_%d", len(cur.entries)+i)
		}
		if _, dup := cur.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %q", d.ID)
		}
		entries[i] = Entry{Document: d, Vector: vectors[i]}
		ids[i] = d.ID
	}

	next := cur.with(entries)
	next.dim = dim
	idx.snap.Store(next)
	log.Printf("Documents added to index (added: %d, total: %d)", len(entries), len(next.entries))
	return ids, nil
}

// Search embeds query and returns up to k nearest documents whose
// similarity exp(-distance) is at least floor. A floor of 0 keeps everything.
// An empty index returns no results without calling the embedder.
func (idx *Index) Search(ctx context.Context, query string, k int, floor float64) ([]Result, error) {
	if idx.Count() == 0 || k <= 0 {
		return nil, nil
	}
	v, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.SearchVector(v, k, floor)
}

// SearchVector is Search with a precomputed query vector.
func (idx *Index) SearchVector(query pgvector.Vector, k int, floor float64) ([]Result, error) {
	s := idx.snap.Load()
	if len(s.entries) == 0 || k <= 0 {
		return nil, nil
	}
	q := query.Slice()
	if len(q) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q), s.dim)
	}

	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		d := l2(q, e.Vector.Slice())
		results = append(results, Result{Entry: e, Distance: d, Similarity: math.Exp(-d)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	if floor > 0 {
		kept := results[:0]
		for _, r := range results {
			if r.Similarity >= floor {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	return results, nil
}

// Reset deletes every document.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.snap.Store(&snapshot{dim: idx.embedder.Dimension(), byID: map[string]int{}})
	log.Printf("Index reset")
}

// l2 is the squared euclidean distance.
func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
