package domain

// Candidate represents one passage retrieved from the passage-level store.
type Candidate struct {
	// DocumentID is the normalized document identifier (usually a DOI).
	// It is the deduplication key: after Dedup a batch holds at most one
	// candidate per DocumentID.
	DocumentID string
	// Content is the passage text.
	Content string
	// Score is the similarity reported by the passage-level store.
	Score float32
	// SourceQuery records which query variant produced this candidate.
	SourceQuery string
	// Metadata carries passthrough fields (title, page, chunk position).
	Metadata map[string]string
}

// RerankedCandidate is a Candidate with its sentence-level relevance score
// and rank positions before and after reranking.
type RerankedCandidate struct {
	Candidate
	// RerankScore is the maximum sentence-level similarity for this
	// document, always in [0, 1].
	RerankScore float32
	RankBefore  int
	RankAfter   int
}

// RankChange records how one document moved during reranking.
type RankChange struct {
	DocumentID string
	OldRank    int
	NewRank    int
}
