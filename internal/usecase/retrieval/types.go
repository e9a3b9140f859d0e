package retrieval

import (
	"time"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// TranslationMethod records how the translated query variant was produced.
type TranslationMethod string

const (
	TranslationLLM  TranslationMethod = "llm"
	TranslationRule TranslationMethod = "rule"
	TranslationNone TranslationMethod = "none"
)

// ExpansionResult holds the query variants produced for one question.
// Variants[0] always equals Original, even when the input is empty.
type ExpansionResult struct {
	Original          string
	Variants          []string
	TranslationMethod TranslationMethod
	Elapsed           time.Duration
}

// QueryStats carries per-query retrieval diagnostics.
type QueryStats struct {
	// Queries lists the variants actually retrieved, in order.
	Queries []string
	// Contributions maps each query to the number of hits it returned.
	Contributions map[string]int
	// FailedQueries lists variants whose embedding or search failed.
	FailedQueries    []string
	TotalBeforeDedup int
	TotalAfterDedup  int
	Elapsed          time.Duration
}

// RerankStats carries reranking diagnostics for one call.
type RerankStats struct {
	CandidateCount int
	CacheHits      int
	CacheMisses    int
	// Degraded is true when reranking failed or timed out and the
	// pre-rerank order was returned instead.
	Degraded      bool
	DegradeReason string
	TopChanges    []domain.RankChange
	Elapsed       time.Duration
}
