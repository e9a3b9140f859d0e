package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// maxParallelSearches bounds the worker pool for per-query passage fetches.
// Expanded query sets are small (typically <=3), so a tight bound keeps
// pressure off the vector store without costing latency.
const maxParallelSearches = 3

// MultiQueryRetriever fetches passages for every query variant, merges the
// per-query result sets, and deduplicates them by document identifier.
type MultiQueryRetriever struct {
	encoder  domain.VectorEncoder
	passages domain.PassageStore
	logger   *slog.Logger
}

// NewMultiQueryRetriever constructs a MultiQueryRetriever.
func NewMultiQueryRetriever(encoder domain.VectorEncoder, passages domain.PassageStore, logger *slog.Logger) *MultiQueryRetriever {
	return &MultiQueryRetriever{
		encoder:  encoder,
		passages: passages,
		logger:   logger,
	}
}

// Retrieve embeds all queries (batched, with per-text fallback), fetches
// topKPerQuery passages per variant in parallel, and returns the merged,
// deduplicated candidate list. It returns domain.ErrNoQuerySucceeded when
// every variant failed; partial failure proceeds with whatever succeeded.
func (r *MultiQueryRetriever) Retrieve(ctx context.Context, queries []string, topKPerQuery int) ([]domain.Candidate, QueryStats, error) {
	start := time.Now()
	stats := QueryStats{Contributions: map[string]int{}}

	if len(queries) == 0 {
		return nil, stats, fmt.Errorf("retrieve: %w", domain.ErrNoQuerySucceeded)
	}

	embedded, failed := r.embedQueries(ctx, queries)
	stats.FailedQueries = append(stats.FailedQueries, failed...)
	if len(embedded) == 0 {
		stats.Elapsed = time.Since(start)
		return nil, stats, fmt.Errorf("embedding failed for all %d queries: %w", len(queries), domain.ErrNoQuerySucceeded)
	}

	// Per-query fetches have no ordering dependency; results land in a
	// fixed slot per query so merge order never depends on arrival order.
	perQuery := make([][]domain.PassageHit, len(embedded))
	searchErrs := make([]error, len(embedded))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSearches)
	for i := range embedded {
		g.Go(func() error {
			hits, err := r.passages.Search(gctx, embedded[i].vector, topKPerQuery)
			if err != nil {
				searchErrs[i] = err
				return nil // partial failure is not fatal
			}
			perQuery[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var candidates []domain.Candidate
	succeeded := 0
	for i, eq := range embedded {
		if searchErrs[i] != nil {
			r.logger.Warn("query_search_failed",
				slog.String("query", eq.query),
				slog.String("error", searchErrs[i].Error()))
			stats.FailedQueries = append(stats.FailedQueries, eq.query)
			stats.Contributions[eq.query] = 0
			continue
		}
		succeeded++
		stats.Queries = append(stats.Queries, eq.query)
		stats.Contributions[eq.query] = len(perQuery[i])
		for j, hit := range perQuery[i] {
			candidates = append(candidates, toCandidate(hit, eq.query, i*topKPerQuery+j))
		}
	}
	if succeeded == 0 {
		stats.Elapsed = time.Since(start)
		return nil, stats, fmt.Errorf("passage search failed for all %d queries: %w", len(embedded), domain.ErrNoQuerySucceeded)
	}

	stats.TotalBeforeDedup = len(candidates)
	deduped := Dedup(candidates)
	stats.TotalAfterDedup = len(deduped)
	stats.Elapsed = time.Since(start)

	r.logger.Info("multi_query_retrieval_completed",
		slog.Int("query_count", len(queries)),
		slog.Int("queries_succeeded", succeeded),
		slog.Int("before_dedup", stats.TotalBeforeDedup),
		slog.Int("after_dedup", stats.TotalAfterDedup),
		slog.Int64("elapsed_ms", stats.Elapsed.Milliseconds()))

	return deduped, stats, nil
}

type embeddedQuery struct {
	query  string
	vector []float32
}

// embedQueries embeds all queries in one batched call, falling back to
// per-text calls when the batch fails. Individual failures skip the query
// instead of failing the batch.
func (r *MultiQueryRetriever) embedQueries(ctx context.Context, queries []string) ([]embeddedQuery, []string) {
	vectors, err := r.encoder.Encode(ctx, queries)
	if err == nil && len(vectors) == len(queries) {
		embedded := make([]embeddedQuery, len(queries))
		for i, q := range queries {
			embedded[i] = embeddedQuery{query: q, vector: vectors[i]}
		}
		return embedded, nil
	}
	if err != nil {
		r.logger.Warn("batch_embedding_failed_falling_back_to_single",
			slog.Int("query_count", len(queries)),
			slog.String("error", err.Error()))
	} else {
		r.logger.Warn("batch_embedding_count_mismatch",
			slog.Int("expected", len(queries)),
			slog.Int("got", len(vectors)))
	}

	var embedded []embeddedQuery
	var failed []string
	for _, q := range queries {
		vs, err := r.encoder.Encode(ctx, []string{q})
		if err != nil || len(vs) == 0 {
			r.logger.Warn("query_embedding_failed",
				slog.String("query", q))
			failed = append(failed, q)
			continue
		}
		embedded = append(embedded, embeddedQuery{query: q, vector: vs[0]})
	}
	return embedded, failed
}

// toCandidate normalizes a passage hit into a Candidate. The document
// identifier comes from the doi/DOI metadata keys when present, then from
// the store's own document ID; hits with neither get a synthetic key so no
// retrieved passage is silently dropped.
func toCandidate(hit domain.PassageHit, sourceQuery string, ordinal int) domain.Candidate {
	docID := domain.ExtractDOI(hit.Metadata)
	if docID == "" {
		docID = domain.CleanDOI(hit.DocumentID)
	}
	if docID == "" {
		docID = fmt.Sprintf("no-doi-%d", ordinal)
	}
	return domain.Candidate{
		DocumentID:  docID,
		Content:     hit.Content,
		Score:       hit.Score,
		SourceQuery: sourceQuery,
		Metadata:    hit.Metadata,
	}
}

// Dedup collapses candidates sharing a DocumentID, keeping the
// highest-scoring occurrence, and orders the result by score descending
// with first-seen order breaking ties. Applying Dedup twice yields the
// same result as applying it once.
func Dedup(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	index := make(map[string]int, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := index[c.DocumentID]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		index[c.DocumentID] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
