package domain

import "context"

// PassageHit is a single nearest-neighbor result from the passage-level store.
type PassageHit struct {
	DocumentID string
	Content    string
	Score      float32
	Metadata   map[string]string
}

// PassageStore defines the interface for the passage-level vector index.
type PassageStore interface {
	Search(ctx context.Context, vector []float32, topK int) ([]PassageHit, error)
}

// SentenceHit is a single sentence-level result with its similarity score.
type SentenceHit struct {
	Text  string
	Score float32
}

// SentenceStore defines the interface for the sentence-level vector index
// used during reranking. Queries are always scoped to a single document.
type SentenceStore interface {
	// QueryByDocument returns the sentences of one document closest to the
	// query vector.
	QueryByDocument(ctx context.Context, vector []float32, documentID string, topK int) ([]SentenceHit, error)

	// QueryByDocuments batches per-document queries to reduce round-trips.
	// The result map is keyed by document ID; documents with no indexed
	// sentences map to an empty slice.
	QueryByDocuments(ctx context.Context, vector []float32, documentIDs []string, topKPerDoc int) (map[string][]SentenceHit, error)
}
