package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

const translationMaxTokens = 100

// Expander turns a single question into a small ordered list of query
// variants: the original, an English translation for CJK input, and a
// synonym-substituted phrasing. Expansion never fails outward; every
// sub-step degrades to "no additional variant".
type Expander struct {
	llm        domain.LLMClient
	tables     *TermTables
	maxQueries int
	logger     *slog.Logger
}

// NewExpander constructs an Expander. llm may be nil, in which case
// translation relies on the term-mapping table alone. maxQueries caps the
// total variant count, original included; values below 1 fall back to 3.
func NewExpander(llm domain.LLMClient, tables *TermTables, maxQueries int, logger *slog.Logger) *Expander {
	if maxQueries < 1 {
		maxQueries = 3
	}
	return &Expander{
		llm:        llm,
		tables:     tables,
		maxQueries: maxQueries,
		logger:     logger,
	}
}

// Expand produces the variant list for a query. Variants[0] is always the
// query itself, byte for byte, so even total expansion failure leaves a
// usable query. Empty or whitespace-only input yields just the original.
func (e *Expander) Expand(ctx context.Context, query string) ExpansionResult {
	start := time.Now()

	result := ExpansionResult{
		Original:          query,
		Variants:          []string{query},
		TranslationMethod: TranslationNone,
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		result.Elapsed = time.Since(start)
		return result
	}

	if translated, method := e.translate(ctx, trimmed); method != TranslationNone {
		result.Variants = append(result.Variants, translated)
		result.TranslationMethod = method
	}

	if synonym, ok := e.tables.SubstituteSynonym(trimmed); ok {
		result.Variants = append(result.Variants, synonym)
	}

	result.Variants = dedupVariants(result.Variants)
	if len(result.Variants) > e.maxQueries {
		result.Variants = result.Variants[:e.maxQueries]
	}
	result.Elapsed = time.Since(start)

	e.logger.Info("query_expanded",
		slog.String("original", query),
		slog.Any("variants", result.Variants),
		slog.String("translation_method", string(result.TranslationMethod)),
		slog.Int64("elapsed_ms", result.Elapsed.Milliseconds()))

	return result
}

// translate produces the English variant for CJK queries. It tries the LLM
// first and falls back to term-mapping substitution; a variant identical to
// the input is discarded rather than duplicated.
func (e *Expander) translate(ctx context.Context, query string) (string, TranslationMethod) {
	if !ContainsCJK(query) {
		return query, TranslationNone
	}

	if e.llm != nil {
		translated, err := e.translateWithLLM(ctx, query)
		if err != nil {
			e.logger.Warn("llm_translation_failed_falling_back_to_rules",
				slog.String("query", query),
				slog.String("error", err.Error()))
		} else if translated != "" && !sameVariant(translated, query) {
			return translated, TranslationLLM
		}
	}

	translated := e.tables.TranslateByRules(query)
	if sameVariant(translated, query) {
		return query, TranslationNone
	}
	return translated, TranslationRule
}

func (e *Expander) translateWithLLM(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf(`You are a translator for materials-science literature search.
Translate the following query into English, keeping technical terms exact.
Output ONLY the translated text. Do not add explanations.

Query: %s`, query)

	resp, err := e.llm.Generate(ctx, prompt, translationMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// dedupVariants removes case-insensitive, whitespace-normalized duplicates
// while preserving order. The first element is never dropped.
func dedupVariants(variants []string) []string {
	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		key := normalizeVariant(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func normalizeVariant(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func sameVariant(a, b string) bool {
	return normalizeVariant(a) == normalizeVariant(b)
}
