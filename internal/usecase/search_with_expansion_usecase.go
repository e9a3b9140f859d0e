package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase/retrieval"
)

// NoResultsMessage is what end users see when every retrieval path came back
// empty. An empty result set is a successful outcome, not an error.
const NoResultsMessage = "no relevant documents found, try rephrasing the question"

// SearchInput defines the parameters for one retrieval request.
type SearchInput struct {
	Question        string
	TopK            int
	EnableExpansion bool
	EnableReranking bool
}

// SearchResult is one ranked passage returned to the answer-synthesis layer.
// Score carries the rerank score when reranking ran, otherwise the passage
// store's similarity.
type SearchResult struct {
	DocumentID  string
	Content     string
	Score       float32
	SourceQuery string
	Metadata    map[string]string
}

// SearchOutput is the final ranked result plus per-call diagnostics.
type SearchOutput struct {
	Results     []SearchResult
	Message     string
	Diagnostics Diagnostics
}

// Diagnostics records what each pipeline stage did for one request. It is
// consumed by operators and logging, never by control flow.
type Diagnostics struct {
	RetrievalID        string
	Queries            []string
	QueryContributions map[string]int
	FailedQueries      []string
	TranslationMethod  string
	TotalBeforeDedup   int
	TotalAfterDedup    int
	RerankCandidates   int
	TopBeforeRerank    []string
	TopAfterRerank     []string
	RankChanges        []domain.RankChange
	ExpansionSkipped   bool
	RerankSkipped      bool
	RerankSkipReason   string
	UsedFallback       bool
	ExpansionMs        int64
	RetrievalMs        int64
	RerankMs           int64
	TotalMs            int64
}

// QueryExpander produces query variants for one question. Expansion never
// fails; a degenerate result still carries the original query.
type QueryExpander interface {
	Expand(ctx context.Context, query string) retrieval.ExpansionResult
}

// MultiRetriever fetches and deduplicates candidates for a set of query
// variants.
type MultiRetriever interface {
	Retrieve(ctx context.Context, queries []string, topKPerQuery int) ([]domain.Candidate, retrieval.QueryStats, error)
}

// Reranker reorders candidates by sentence-level relevance. It degrades
// internally instead of returning errors.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate, topK int) ([]domain.RerankedCandidate, retrieval.RerankStats)
}

// SearchConfig holds orchestrator-level settings.
type SearchConfig struct {
	// TopKPerQuery is the passage-store depth for each query variant.
	TopKPerQuery int
	// DefaultTopK applies when the request does not specify one.
	DefaultTopK int
	// EnableExpansion and EnableReranking are the process-wide switches;
	// a request can disable but not force-enable a stage.
	EnableExpansion bool
	EnableReranking bool
	// MinSimilarity drops final results scoring below the floor. Zero
	// disables the filter.
	MinSimilarity float32
}

// SearchWithExpansionUsecase is the retrieval pipeline entry point: expand,
// retrieve, rerank, finalize, with fallbacks at every optional stage.
type SearchWithExpansionUsecase interface {
	Execute(ctx context.Context, input SearchInput) (*SearchOutput, error)
}

type searchWithExpansionUsecase struct {
	expander  QueryExpander
	retriever MultiRetriever
	reranker  Reranker
	encoder   domain.VectorEncoder
	passages  domain.PassageStore
	cfg       SearchConfig
	logger    *slog.Logger
}

// NewSearchWithExpansionUsecase wires the pipeline. encoder and passages are
// used directly by the single-query fallback path when multi-query retrieval
// fails entirely.
func NewSearchWithExpansionUsecase(
	expander QueryExpander,
	retriever MultiRetriever,
	reranker Reranker,
	encoder domain.VectorEncoder,
	passages domain.PassageStore,
	cfg SearchConfig,
	logger *slog.Logger,
) SearchWithExpansionUsecase {
	if cfg.TopKPerQuery <= 0 {
		cfg.TopKPerQuery = 20
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 15
	}
	return &searchWithExpansionUsecase{
		expander:  expander,
		retriever: retriever,
		reranker:  reranker,
		encoder:   encoder,
		passages:  passages,
		cfg:       cfg,
		logger:    logger,
	}
}

func (u *searchWithExpansionUsecase) Execute(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	overallStart := time.Now()

	topK := input.TopK
	if topK <= 0 {
		topK = u.cfg.DefaultTopK
	}
	diag := Diagnostics{
		RetrievalID:        uuid.NewString(),
		QueryContributions: map[string]int{},
	}
	log := u.logger.With(slog.String("retrieval_id", diag.RetrievalID))

	enableExpansion := input.EnableExpansion && u.cfg.EnableExpansion && u.expander != nil
	enableReranking := input.EnableReranking && u.cfg.EnableReranking && u.reranker != nil

	// Stage 1: expansion. Never fatal; a failed expander still leaves the
	// original question as the only variant.
	queries := []string{input.Question}
	diag.TranslationMethod = string(retrieval.TranslationNone)
	if enableExpansion {
		expansionStart := time.Now()
		expansion := u.expander.Expand(ctx, input.Question)
		diag.ExpansionMs = time.Since(expansionStart).Milliseconds()
		if len(expansion.Variants) > 0 && expansion.Variants[0] == input.Question {
			queries = expansion.Variants
			diag.TranslationMethod = string(expansion.TranslationMethod)
		} else {
			log.Warn("expansion_result_discarded",
				slog.Any("variants", expansion.Variants))
		}
	} else {
		diag.ExpansionSkipped = true
	}
	diag.Queries = queries

	// Stage 2: multi-query retrieval, falling back to a plain single-query
	// search before giving up.
	retrievalStart := time.Now()
	candidates, stats, err := u.retriever.Retrieve(ctx, queries, u.cfg.TopKPerQuery)
	if err != nil {
		log.Warn("multi_query_retrieval_failed_falling_back",
			slog.String("error", err.Error()))
		candidates, err = u.singleQuerySearch(ctx, input.Question)
		if err != nil {
			return nil, fmt.Errorf("retrieval failed for %q: %w", input.Question, err)
		}
		diag.UsedFallback = true
		diag.Queries = []string{input.Question}
		diag.QueryContributions = map[string]int{input.Question: len(candidates)}
		diag.TotalBeforeDedup = len(candidates)
		diag.TotalAfterDedup = len(candidates)
	} else {
		diag.QueryContributions = stats.Contributions
		diag.FailedQueries = stats.FailedQueries
		diag.TotalBeforeDedup = stats.TotalBeforeDedup
		diag.TotalAfterDedup = stats.TotalAfterDedup
	}
	diag.RetrievalMs = time.Since(retrievalStart).Milliseconds()
	diag.TopBeforeRerank = topDocumentIDs(candidates, 3)

	// Stage 3: reranking, skipped on empty candidate sets and degraded
	// internally on failure or timeout.
	var results []SearchResult
	if enableReranking && len(candidates) > 0 {
		rerankStart := time.Now()
		reranked, rstats := u.reranker.Rerank(ctx, input.Question, candidates, topK)
		diag.RerankMs = time.Since(rerankStart).Milliseconds()
		diag.RerankCandidates = rstats.CandidateCount
		diag.RankChanges = rstats.TopChanges
		if rstats.Degraded {
			diag.RerankSkipped = true
			diag.RerankSkipReason = rstats.DegradeReason
		}
		results = fromReranked(reranked)
	} else {
		if enableReranking {
			diag.RerankSkipped = true
			diag.RerankSkipReason = "no candidates to rerank"
		} else {
			diag.RerankSkipped = true
			diag.RerankSkipReason = "reranking disabled"
		}
		results = fromCandidates(candidates, topK)
	}

	// Stage 4: finalize.
	results = u.filterByScore(results)
	if len(results) > topK {
		results = results[:topK]
	}
	diag.TopAfterRerank = topResultIDs(results, 3)
	diag.TotalMs = time.Since(overallStart).Milliseconds()

	out := &SearchOutput{Results: results, Diagnostics: diag}
	if len(results) == 0 {
		out.Message = NoResultsMessage
	}

	log.Info("search_with_expansion_completed",
		slog.Int("result_count", len(results)),
		slog.Bool("expansion_skipped", diag.ExpansionSkipped),
		slog.Bool("rerank_skipped", diag.RerankSkipped),
		slog.Bool("used_fallback", diag.UsedFallback),
		slog.Int64("expansion_ms", diag.ExpansionMs),
		slog.Int64("retrieval_ms", diag.RetrievalMs),
		slog.Int64("rerank_ms", diag.RerankMs),
		slog.Int64("total_ms", diag.TotalMs))

	return out, nil
}

// singleQuerySearch is the pre-expansion retrieval path: embed the original
// question and search the passage store once. An error here means the store
// itself is unreachable, which is surfaced to the caller.
func (u *searchWithExpansionUsecase) singleQuerySearch(ctx context.Context, question string) ([]domain.Candidate, error) {
	vectors, err := u.encoder.Encode(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed fallback query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for fallback query")
	}
	hits, err := u.passages.Search(ctx, vectors[0], u.cfg.TopKPerQuery)
	if err != nil {
		return nil, fmt.Errorf("fallback passage search failed: %w", err)
	}
	candidates := make([]domain.Candidate, 0, len(hits))
	for i, hit := range hits {
		docID := domain.ExtractDOI(hit.Metadata)
		if docID == "" {
			docID = domain.CleanDOI(hit.DocumentID)
		}
		if docID == "" {
			docID = fmt.Sprintf("no-doi-%d", i)
		}
		candidates = append(candidates, domain.Candidate{
			DocumentID:  docID,
			Content:     hit.Content,
			Score:       hit.Score,
			SourceQuery: question,
			Metadata:    hit.Metadata,
		})
	}
	return retrieval.Dedup(candidates), nil
}

func (u *searchWithExpansionUsecase) filterByScore(results []SearchResult) []SearchResult {
	if u.cfg.MinSimilarity <= 0 {
		return results
	}
	filtered := results[:0]
	for _, r := range results {
		if r.Score >= u.cfg.MinSimilarity {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func fromReranked(reranked []domain.RerankedCandidate) []SearchResult {
	out := make([]SearchResult, len(reranked))
	for i, r := range reranked {
		out[i] = SearchResult{
			DocumentID:  r.DocumentID,
			Content:     r.Content,
			Score:       r.RerankScore,
			SourceQuery: r.SourceQuery,
			Metadata:    r.Metadata,
		}
	}
	return out
}

func fromCandidates(candidates []domain.Candidate, topK int) []SearchResult {
	n := len(candidates)
	if n > topK {
		n = topK
	}
	out := make([]SearchResult, n)
	for i := 0; i < n; i++ {
		out[i] = SearchResult{
			DocumentID:  candidates[i].DocumentID,
			Content:     candidates[i].Content,
			Score:       candidates[i].Score,
			SourceQuery: candidates[i].SourceQuery,
			Metadata:    candidates[i].Metadata,
		}
	}
	return out
}

func topDocumentIDs(candidates []domain.Candidate, n int) []string {
	if len(candidates) < n {
		n = len(candidates)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = candidates[i].DocumentID
	}
	return ids
}

func topResultIDs(results []SearchResult, n int) []string {
	if len(results) < n {
		n = len(results)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = results[i].DocumentID
	}
	return ids
}
