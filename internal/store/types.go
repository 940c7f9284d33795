// Package store provides the Vector Index (cosine-similarity search over
// embedded chunks) and Lexical Index (BM25 keyword search) that together
// back hybrid retrieval.
package store

import (
	"context"
	"fmt"
	"time"
)

// Difficulty enumerates the enrichment difficulty classification.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Chunk is a retrievable passage of ingested content (spec §3). Identity
// is a UUID; chunks sharing a DocumentID share SourceURL, ContentHash,
// and the validator fields.
type Chunk struct {
	ID           string
	DocumentID   string // hash of the source URL; groups a URL's chunks
	ChunkIndex   int
	TotalChunks  int
	Embedding    []float32
	Text         string
	SourceURL    string
	Kind         string
	Domain       string

	// Content validators, shared across all chunks of a document.
	ContentHash       string
	HTTPLastModified  string // nullable
	HTTPETag          string // nullable
	CommitID          string // nullable, for repos

	// Enriched metadata (internal/enrich output).
	Topics     []string
	Keywords   []string
	Summary    string
	Concepts   []string
	Difficulty Difficulty
	Languages  []string
	Frameworks []string

	FetchedAt time.Time
}

// Document represents a document to be indexed for keyword search.
type Document struct {
	ID      string // Chunk ID
	Content string // Text content
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using BM25 algorithm (the Lexical
// Index, spec §4.3).
type BM25Index interface {
	// Index adds documents to the index
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64

	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English stop words filtered from
// indexed prose and queries alike.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "but", "is", "are", "was", "were",
	"be", "been", "being", "to", "of", "in", "on", "at", "for", "with",
	"this", "that", "it", "as", "by", "from",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding vector dimension (build-time constant).
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfConstruction is HNSW build-time search width (default: 128)
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              16,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using HNSW over raw string IDs and
// float32 vectors. ChunkIndex (chunkstore.go) builds the spec's
// document-centric Vector Index operations on top of this primitive.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (embedder changed? rebuild the vector index)", e.Expected, e.Got)
}
