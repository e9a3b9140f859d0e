package retrieval

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// TermTables holds the static domain vocabulary used for rule-based query
// expansion. Both tables are loaded once at construction and never mutated,
// so concurrent readers need no locking.
type TermTables struct {
	// Mapping translates domain terms to their canonical English form,
	// e.g. "磷酸铁锂" -> "LiFePO4".
	Mapping map[string]string
	// Synonyms maps a domain term to interchangeable phrasings,
	// e.g. "compaction density" -> ["compacted density", "press density"].
	Synonyms map[string][]string

	// sortedMapping and sortedSynonyms keep term iteration deterministic.
	sortedMapping  []string
	sortedSynonyms []string
}

// LoadTermTables reads the term-mapping and synonym JSON files. A missing or
// malformed file is logged as a warning and yields an empty table; rule-based
// expansion then simply contributes no variants.
func LoadTermTables(mappingPath, synonymPath string, logger *slog.Logger) *TermTables {
	t := &TermTables{
		Mapping:  map[string]string{},
		Synonyms: map[string][]string{},
	}

	if err := loadJSONFile(mappingPath, &t.Mapping); err != nil {
		logger.Warn("term_mapping_unavailable",
			slog.String("path", mappingPath),
			slog.String("error", err.Error()))
		t.Mapping = map[string]string{}
	}
	if err := loadJSONFile(synonymPath, &t.Synonyms); err != nil {
		logger.Warn("synonym_table_unavailable",
			slog.String("path", synonymPath),
			slog.String("error", err.Error()))
		t.Synonyms = map[string][]string{}
	}

	t.sortedMapping = sortedKeys(t.Mapping)
	t.sortedSynonyms = sortedKeysOfSlices(t.Synonyms)

	logger.Info("term_tables_loaded",
		slog.Int("mapping_terms", len(t.Mapping)),
		slog.Int("synonym_groups", len(t.Synonyms)))
	return t
}

func loadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysOfSlices(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TranslateByRules substitutes every known domain term in the query with its
// canonical English form. Terms are applied in lexicographic order so the
// output is deterministic regardless of map iteration.
func (t *TermTables) TranslateByRules(query string) string {
	out := query
	for _, term := range t.sortedMapping {
		if strings.Contains(out, term) {
			out = strings.ReplaceAll(out, term, t.Mapping[term])
		}
	}
	return out
}

// SubstituteSynonym replaces the first matched domain term with its first
// synonym and returns the new query. The bool reports whether any term
// matched.
func (t *TermTables) SubstituteSynonym(query string) (string, bool) {
	for _, term := range t.sortedSynonyms {
		if !strings.Contains(query, term) {
			continue
		}
		syns := t.Synonyms[term]
		if len(syns) == 0 {
			continue
		}
		return strings.ReplaceAll(query, term, syns[0]), true
	}
	return query, false
}

// MatchKnownTerms returns the domain terms (from either table) present in
// the text, in lexicographic order.
func (t *TermTables) MatchKnownTerms(text string) []string {
	seen := map[string]bool{}
	var matched []string
	for _, term := range t.sortedMapping {
		if strings.Contains(text, term) && !seen[term] {
			seen[term] = true
			matched = append(matched, term)
		}
	}
	for _, term := range t.sortedSynonyms {
		if strings.Contains(text, term) && !seen[term] {
			seen[term] = true
			matched = append(matched, term)
		}
	}
	sort.Strings(matched)
	return matched
}

// ContainsCJK reports whether the text contains CJK ideographs, hiragana, or
// katakana. Queries in those scripts get a translated variant so they can
// match the (mostly English) literature corpus.
func ContainsCJK(s string) bool {
	for _, r := range s {
		if (r >= 0x4E00 && r <= 0x9FFF) || // CJK Unified Ideographs
			(r >= 0x3400 && r <= 0x4DBF) || // CJK Extension A
			(r >= 0x3040 && r <= 0x30FF) { // Hiragana + Katakana
			return true
		}
	}
	return false
}
