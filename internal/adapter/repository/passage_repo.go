package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// PassageRepository implements domain.PassageStore on PostgreSQL with
// pgvector. It serves deployments that index passages into Postgres instead
// of Qdrant; both backends expose the same nearest-neighbor contract.
type PassageRepository struct {
	pool *pgxpool.Pool
}

// NewPassageRepository creates a pgvector-backed passage store.
func NewPassageRepository(pool *pgxpool.Pool) *PassageRepository {
	return &PassageRepository{pool: pool}
}

// Search returns the topK passages nearest to the query vector by cosine
// distance, with similarity normalized to 1 - distance.
func (r *PassageRepository) Search(ctx context.Context, vector []float32, topK int) ([]domain.PassageHit, error) {
	query := `
		SELECT doi, content, title, source, page, 1 - (embedding <=> $1) AS score
		FROM passages
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search passages: %w", err)
	}
	defer rows.Close()

	var hits []domain.PassageHit
	for rows.Next() {
		var (
			doi, content  string
			title, source *string
			page          *int
			score         float32
		)
		if err := rows.Scan(&doi, &content, &title, &source, &page, &score); err != nil {
			return nil, fmt.Errorf("failed to scan passage row: %w", err)
		}
		hit := domain.PassageHit{
			DocumentID: doi,
			Content:    content,
			Score:      score,
			Metadata:   map[string]string{"doi": doi},
		}
		if title != nil {
			hit.Metadata["title"] = *title
		}
		if source != nil {
			hit.Metadata["source"] = *source
		}
		if page != nil {
			hit.Metadata["page"] = fmt.Sprintf("%d", *page)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("passage rows error: %w", err)
	}
	return hits, nil
}

var _ domain.PassageStore = (*PassageRepository)(nil)
