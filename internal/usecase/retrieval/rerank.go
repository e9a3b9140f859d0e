package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// RerankConfig holds the tunables for sentence-level reranking.
type RerankConfig struct {
	// CandidateCap limits how many candidates are reranked; the rest are
	// dropped. Reranking is the expensive stage, so the cap trades recall
	// for latency.
	CandidateCap int
	// SentencesPerDoc is the sentence-store depth per document.
	SentencesPerDoc int
	// Timeout bounds the whole rerank call. On expiry the pre-rerank
	// order is returned unchanged.
	Timeout time.Duration
	// CacheSize bounds the (query, document) score cache. Zero disables
	// caching.
	CacheSize int
}

// DefaultRerankConfig mirrors the production defaults.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		CandidateCap:    20,
		SentencesPerDoc: 50,
		Timeout:         5 * time.Second,
		CacheSize:       1024,
	}
}

// SentenceReranker reorders candidates by their best sentence-level match
// against the query. Scores are deterministic for the same inputs, so a
// bounded LRU cache keyed by (query, document) is safe to share across
// concurrent requests.
type SentenceReranker struct {
	encoder   domain.VectorEncoder
	sentences domain.SentenceStore
	cfg       RerankConfig
	cache     *lru.Cache[string, float32]
	logger    *slog.Logger
}

// NewSentenceReranker constructs a SentenceReranker.
func NewSentenceReranker(encoder domain.VectorEncoder, sentences domain.SentenceStore, cfg RerankConfig, logger *slog.Logger) *SentenceReranker {
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = 20
	}
	if cfg.SentencesPerDoc <= 0 {
		cfg.SentencesPerDoc = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	var cache *lru.Cache[string, float32]
	if cfg.CacheSize > 0 {
		// lru.New only errors on a non-positive size.
		cache, _ = lru.New[string, float32](cfg.CacheSize)
	}
	return &SentenceReranker{
		encoder:   encoder,
		sentences: sentences,
		cfg:       cfg,
		cache:     cache,
		logger:    logger,
	}
}

// Rerank scores each candidate by the maximum sentence-level similarity in
// its document and returns the candidates reordered by that score, capped
// at topK. It never fails outward: on error or timeout the pre-rerank order
// is returned with Degraded set in the stats. The output never exceeds
// min(len(candidates), topK) entries and all scores lie in [0, 1].
func (r *SentenceReranker) Rerank(ctx context.Context, query string, candidates []domain.Candidate, topK int) ([]domain.RerankedCandidate, RerankStats) {
	start := time.Now()
	stats := RerankStats{}

	if len(candidates) == 0 || topK <= 0 {
		stats.Elapsed = time.Since(start)
		return []domain.RerankedCandidate{}, stats
	}

	capped := candidates
	if len(capped) > r.cfg.CandidateCap {
		capped = capped[:r.cfg.CandidateCap]
	}
	stats.CandidateCount = len(capped)

	scores, hits, misses, err := r.scoreWithTimeout(ctx, query, capped)
	stats.CacheHits = hits
	stats.CacheMisses = misses
	if err != nil {
		r.logger.Warn("reranking_failed_using_original_order",
			slog.String("error", err.Error()),
			slog.Int("candidate_count", len(capped)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		stats.Degraded = true
		stats.DegradeReason = err.Error()
		stats.Elapsed = time.Since(start)
		return passthroughOrder(capped, topK), stats
	}

	reranked := make([]domain.RerankedCandidate, len(capped))
	for i, c := range capped {
		score, ok := scores[c.DocumentID]
		if !ok {
			// No sentence data for this document: keep its passage score.
			score = clamp01(c.Score)
		}
		reranked[i] = domain.RerankedCandidate{
			Candidate:   c,
			RerankScore: score,
			RankBefore:  i,
		}
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	for i := range reranked {
		reranked[i].RankAfter = i
	}

	for i := 0; i < len(reranked) && i < 3; i++ {
		stats.TopChanges = append(stats.TopChanges, domain.RankChange{
			DocumentID: reranked[i].DocumentID,
			OldRank:    reranked[i].RankBefore,
			NewRank:    i,
		})
	}

	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	stats.Elapsed = time.Since(start)

	r.logger.Info("reranking_completed",
		slog.Int("candidate_count", stats.CandidateCount),
		slog.Int("returned", len(reranked)),
		slog.Int("cache_hits", stats.CacheHits),
		slog.Int("cache_misses", stats.CacheMisses),
		slog.Int64("elapsed_ms", stats.Elapsed.Milliseconds()))

	return reranked, stats
}

// scoreWithTimeout runs the sentence scoring under the configured deadline.
// Scoring is all-or-nothing: a timed-out call abandons its in-flight store
// query and no partial scores are merged.
func (r *SentenceReranker) scoreWithTimeout(ctx context.Context, query string, candidates []domain.Candidate) (map[string]float32, int, int, error) {
	rctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type outcome struct {
		scores map[string]float32
		hits   int
		misses int
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		scores, hits, misses, err := r.scoreCandidates(rctx, query, candidates)
		ch <- outcome{scores, hits, misses, err}
	}()

	select {
	case <-rctx.Done():
		return nil, 0, 0, fmt.Errorf("rerank timed out after %s: %w", r.cfg.Timeout, rctx.Err())
	case out := <-ch:
		return out.scores, out.hits, out.misses, out.err
	}
}

func (r *SentenceReranker) scoreCandidates(ctx context.Context, query string, candidates []domain.Candidate) (map[string]float32, int, int, error) {
	scores := make(map[string]float32, len(candidates))
	hits, misses := 0, 0

	var uncached []string
	seen := map[string]bool{}
	for _, c := range candidates {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		if r.cache != nil {
			if score, ok := r.cache.Get(cacheKey(query, c.DocumentID)); ok {
				scores[c.DocumentID] = score
				hits++
				continue
			}
		}
		misses++
		uncached = append(uncached, c.DocumentID)
	}
	if len(uncached) == 0 {
		return scores, hits, misses, nil
	}

	vectors, err := r.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, hits, misses, fmt.Errorf("failed to embed rerank query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, hits, misses, fmt.Errorf("no embedding returned for rerank query")
	}

	perDoc, err := r.sentences.QueryByDocuments(ctx, vectors[0], uncached, r.cfg.SentencesPerDoc)
	if err != nil {
		return nil, hits, misses, fmt.Errorf("sentence store query failed: %w", err)
	}

	for _, docID := range uncached {
		sentences := perDoc[docID]
		if len(sentences) == 0 {
			// Documents without sentence coverage keep their passage
			// score at the call site; do not cache the absence.
			continue
		}
		var best float32
		for _, s := range sentences {
			if sim := clamp01(s.Score); sim > best {
				best = sim
			}
		}
		scores[docID] = best
		if r.cache != nil {
			r.cache.Add(cacheKey(query, docID), best)
		}
	}
	return scores, hits, misses, nil
}

// passthroughOrder returns the candidates in their incoming order, scored
// by their clamped passage score. Used when reranking degrades.
func passthroughOrder(candidates []domain.Candidate, topK int) []domain.RerankedCandidate {
	n := len(candidates)
	if n > topK {
		n = topK
	}
	out := make([]domain.RerankedCandidate, n)
	for i := 0; i < n; i++ {
		out[i] = domain.RerankedCandidate{
			Candidate:   candidates[i],
			RerankScore: clamp01(candidates[i].Score),
			RankBefore:  i,
			RankAfter:   i,
		}
	}
	return out
}

func cacheKey(query, docID string) string {
	return query + "\x00" + docID
}

// clamp01 bounds a similarity to [0, 1]. Backends differ in metric range
// (cosine similarity may be negative, raw dot product may exceed 1), and
// every downstream consumer assumes the unit interval.
func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
