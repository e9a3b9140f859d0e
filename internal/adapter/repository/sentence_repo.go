package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// SentenceRepository implements domain.SentenceStore on PostgreSQL with
// pgvector. Postgres has no batched multi-filter nearest-neighbor query, so
// QueryByDocuments issues one query per document sequentially; with the
// candidate cap at 20 that stays well inside the rerank deadline.
type SentenceRepository struct {
	pool *pgxpool.Pool
}

// NewSentenceRepository creates a pgvector-backed sentence store.
func NewSentenceRepository(pool *pgxpool.Pool) *SentenceRepository {
	return &SentenceRepository{pool: pool}
}

// QueryByDocument returns the sentences of one document nearest to the
// query vector.
func (r *SentenceRepository) QueryByDocument(ctx context.Context, vector []float32, documentID string, topK int) ([]domain.SentenceHit, error) {
	query := `
		SELECT content, 1 - (embedding <=> $1) AS score
		FROM sentences
		WHERE doi = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(vector), documentID, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search sentences for %q: %w", documentID, err)
	}
	defer rows.Close()

	var hits []domain.SentenceHit
	for rows.Next() {
		var hit domain.SentenceHit
		if err := rows.Scan(&hit.Text, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan sentence row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sentence rows error: %w", err)
	}
	return hits, nil
}

// QueryByDocuments runs QueryByDocument per document. A failure on one
// document fails the whole call so the reranker can degrade atomically.
func (r *SentenceRepository) QueryByDocuments(ctx context.Context, vector []float32, documentIDs []string, topKPerDoc int) (map[string][]domain.SentenceHit, error) {
	out := make(map[string][]domain.SentenceHit, len(documentIDs))
	for _, docID := range documentIDs {
		hits, err := r.QueryByDocument(ctx, vector, docID, topKPerDoc)
		if err != nil {
			return nil, err
		}
		out[docID] = hits
	}
	return out, nil
}

var _ domain.SentenceStore = (*SentenceRepository)(nil)
