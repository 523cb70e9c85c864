package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

// Artifact suffixes appended to the index path.
const (
	VectorsSuffix  = ".vec"
	MetadataSuffix = ".meta.json"
)

type metadataFile struct {
	Dimension int        `json:"dimension"`
	Documents []Document `json:"documents"`
}

// ArtifactPaths returns the vectors and metadata paths for an index path.
func ArtifactPaths(path string) (vectors, metadata string) {
	return path + VectorsSuffix, path + MetadataSuffix
}

// Save writes the vectors and metadata artifacts next to each other.
func (idx *Index) Save(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s := idx.snap.Load()
	vecPath, metaPath := ArtifactPaths(path)
	if err := os.MkdirAll(filepath.Dir(vecPath), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		var buf []byte
		for _, e := range s.entries {
			var err error
			if buf, err = e.Vector.EncodeBinary(buf); err != nil {
				return fmt.Errorf("encode vector %s: %w", e.ID, err)
			}
		}
		return writeAtomic(vecPath, buf)
	})
	g.Go(func() error {
		meta := metadataFile{Dimension: s.dim, Documents: make([]Document, len(s.entries))}
		for i, e := range s.entries {
			meta.Documents[i] = e.Document
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		return writeAtomic(metaPath, data)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("Index saved (path: %s, documents: %d)", path, len(s.entries))
	return nil
}

// Load replaces the index contents with the artifacts at path. A missing
// artifact leaves the index empty and is not an error.
func (idx *Index) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	empty := &snapshot{dim: idx.embedder.Dimension(), byID: map[string]int{}}
	vecPath, metaPath := ArtifactPaths(path)

	vecData, err := os.ReadFile(vecPath)
	if errors.Is(err, fs.ErrNotExist) {
		idx.snap.Store(empty)
		log.Printf("No index artifacts found, starting empty (path: %s)", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	metaData, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		idx.snap.Store(empty)
		log.Printf("No index metadata found, starting empty (path: %s)", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	var meta metadataFile
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	vectors, err := decodeVectors(vecData)
	if err != nil {
		return err
	}
	if len(vectors) != len(meta.Documents) {
		return fmt.Errorf("index artifacts disagree: %d vectors, %d documents", len(vectors), len(meta.Documents))
	}
	if want := idx.embedder.Dimension(); want > 0 && meta.Dimension > 0 && meta.Dimension != want {
		return fmt.Errorf("%w: artifact has %d, embedder has %d", ErrDimensionMismatch, meta.Dimension, want)
	}

	entries := make([]Entry, len(vectors))
	for i := range vectors {
		if meta.Dimension > 0 && len(vectors[i].Slice()) != meta.Dimension {
			return fmt.Errorf("%w: stored vector %d has %d", ErrDimensionMismatch, i, len(vectors[i].Slice()))
		}
		entries[i] = Entry{Document: meta.Documents[i], Vector: vectors[i]}
	}
	next := (&snapshot{byID: map[string]int{}}).with(entries)
	next.dim = meta.Dimension
	idx.snap.Store(next)
	log.Printf("Index loaded (path: %s, documents: %d)", path, len(entries))
	return nil
}

func decodeVectors(data []byte) ([]pgvector.Vector, error) {
	var out []pgvector.Vector
	for off := 0; off < len(data); {
		if len(data)-off < 4 {
			return nil, fmt.Errorf("truncated vector header at byte %d", off)
		}
		dim := int(binary.BigEndian.Uint16(data[off : off+2]))
		size := 4 + 4*dim
		if len(data)-off < size {
			return nil, fmt.Errorf("truncated vector at byte %d", off)
		}
		var v pgvector.Vector
		if err := v.DecodeBinary(data[off : off+size]); err != nil {
			return nil, fmt.Errorf("decode vector at byte %d: %w", off, err)
		}
		out = append(out, v)
		off += size
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
