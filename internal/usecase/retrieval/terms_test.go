package retrieval_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase/retrieval"
)

func writeTableFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLoadTermTables_ReadsBothFiles(t *testing.T) {
	mapping := writeTableFile(t, "mapping.json", `{"磷酸铁锂": "LiFePO4", "压实密度": "compaction density"}`)
	synonyms := writeTableFile(t, "synonyms.json", `{"compaction density": ["compacted density", "electrode density"]}`)

	tables := retrieval.LoadTermTables(mapping, synonyms, discardLogger())

	assert.Equal(t, "LiFePO4", tables.Mapping["磷酸铁锂"])
	assert.Equal(t, []string{"compacted density", "electrode density"}, tables.Synonyms["compaction density"])
}

func TestLoadTermTables_MissingFilesYieldEmptyTables(t *testing.T) {
	tables := retrieval.LoadTermTables("/nonexistent/mapping.json", "/nonexistent/synonyms.json", discardLogger())

	assert.Empty(t, tables.Mapping)
	assert.Empty(t, tables.Synonyms)

	// Empty tables must still behave, just without contributing variants.
	out := tables.TranslateByRules("磷酸铁锂的压实密度")
	assert.Equal(t, "磷酸铁锂的压实密度", out)

	_, ok := tables.SubstituteSynonym("compaction density of LiFePO4")
	assert.False(t, ok)
}

func TestLoadTermTables_MalformedFileYieldsEmptyTable(t *testing.T) {
	mapping := writeTableFile(t, "mapping.json", `{not json`)
	synonyms := writeTableFile(t, "synonyms.json", `{"a": ["b"]}`)

	tables := retrieval.LoadTermTables(mapping, synonyms, discardLogger())

	assert.Empty(t, tables.Mapping)
	assert.Equal(t, []string{"b"}, tables.Synonyms["a"])
}

func TestTranslateByRules(t *testing.T) {
	mapping := writeTableFile(t, "mapping.json",
		`{"磷酸铁锂": "LiFePO4", "压实密度": "compaction density", "正极材料": "cathode material"}`)
	synonyms := writeTableFile(t, "synonyms.json", `{}`)
	tables := retrieval.LoadTermTables(mapping, synonyms, discardLogger())

	t.Run("substitutes every known term", func(t *testing.T) {
		got := tables.TranslateByRules("磷酸铁锂正极材料的压实密度")
		assert.Contains(t, got, "LiFePO4")
		assert.Contains(t, got, "cathode material")
		assert.Contains(t, got, "compaction density")
		assert.NotContains(t, got, "磷酸铁锂")
	})

	t.Run("unknown text passes through", func(t *testing.T) {
		assert.Equal(t, "plain english query", tables.TranslateByRules("plain english query"))
	})

	t.Run("deterministic", func(t *testing.T) {
		q := "磷酸铁锂的压实密度"
		assert.Equal(t, tables.TranslateByRules(q), tables.TranslateByRules(q))
	})
}

func TestSubstituteSynonym(t *testing.T) {
	mapping := writeTableFile(t, "mapping.json", `{}`)
	synonyms := writeTableFile(t, "synonyms.json",
		`{"compaction density": ["compacted density"], "cycle life": ["cycling stability", "cycle performance"]}`)
	tables := retrieval.LoadTermTables(mapping, synonyms, discardLogger())

	t.Run("first matched term, first synonym", func(t *testing.T) {
		got, ok := tables.SubstituteSynonym("effect of compaction density on cycle life")
		assert.True(t, ok)
		// "compaction density" sorts before "cycle life", so it is the
		// one substituted; "cycle life" stays.
		assert.Equal(t, "effect of compacted density on cycle life", got)
	})

	t.Run("no match", func(t *testing.T) {
		got, ok := tables.SubstituteSynonym("electrolyte additives")
		assert.False(t, ok)
		assert.Equal(t, "electrolyte additives", got)
	})

	t.Run("empty synonym list skipped", func(t *testing.T) {
		syn := writeTableFile(t, "synonyms.json", `{"cycle life": []}`)
		empty := retrieval.LoadTermTables(mapping, syn, discardLogger())
		_, ok := empty.SubstituteSynonym("cycle life of LFP")
		assert.False(t, ok)
	})
}

func TestMatchKnownTerms(t *testing.T) {
	mapping := writeTableFile(t, "mapping.json", `{"磷酸铁锂": "LiFePO4"}`)
	synonyms := writeTableFile(t, "synonyms.json", `{"cycle life": ["cycling stability"]}`)
	tables := retrieval.LoadTermTables(mapping, synonyms, discardLogger())

	matched := tables.MatchKnownTerms("磷酸铁锂 cycle life improvements")
	assert.Equal(t, []string{"cycle life", "磷酸铁锂"}, matched)

	assert.Empty(t, tables.MatchKnownTerms("nothing relevant"))
}

func TestContainsCJK(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"磷酸铁锂的压实密度", true},
		{"LiFePO4 cathode doped with 镁", true},
		{"リチウムイオン電池", true},
		{"LiFePO4 compaction density", false},
		{"", false},
		{"résumé café", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retrieval.ContainsCJK(tt.in), "input %q", tt.in)
	}
}
