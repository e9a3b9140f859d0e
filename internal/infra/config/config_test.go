package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "9020", cfg.Port)

	assert.Equal(t, "http://bge-server:8001", cfg.Embedding.URL)
	assert.Equal(t, "bge-large-zh-v1.5", cfg.Embedding.Model)
	assert.Equal(t, 30, cfg.Embedding.Timeout)

	assert.Equal(t, "http://ollama:11434", cfg.LLM.URL)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.Model)

	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.Equal(t, "qdrant:6334", cfg.Vector.QdrantAddr)
	assert.Equal(t, "passages", cfg.Vector.PassageCollection)
	assert.Equal(t, "sentences", cfg.Vector.SentenceCollection)

	assert.True(t, cfg.Retrieval.EnableExpansion)
	assert.Equal(t, 3, cfg.Retrieval.MaxQueries)
	assert.Equal(t, 20, cfg.Retrieval.TopKPerQuery)
	assert.Equal(t, 15, cfg.Retrieval.DefaultTopK)
	assert.Equal(t, "data/term_mapping.json", cfg.Retrieval.TermMappingFile)
	assert.Equal(t, "data/synonyms.json", cfg.Retrieval.SynonymFile)

	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, 20, cfg.Rerank.CandidateCap)
	assert.Equal(t, 50, cfg.Rerank.SentencesPerDoc)
	assert.Equal(t, 5, cfg.Rerank.TimeoutSeconds)
	assert.Equal(t, 1024, cfg.Rerank.CacheSize)

	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("VECTOR_BACKEND", "postgres")
	t.Setenv("ENABLE_QUERY_EXPANSION", "false")
	t.Setenv("MAX_QUERIES", "5")
	t.Setenv("MIN_SIMILARITY", "0.35")
	t.Setenv("RERANK_TIMEOUT_SECONDS", "10")

	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.Vector.Backend)
	assert.False(t, cfg.Retrieval.EnableExpansion)
	assert.Equal(t, 5, cfg.Retrieval.MaxQueries)
	assert.InDelta(t, 0.35, cfg.Retrieval.MinSimilarity, 1e-9)
	assert.Equal(t, 10, cfg.Rerank.TimeoutSeconds)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_QUERIES", "not-a-number")
	t.Setenv("ENABLE_RERANKING", "maybe")
	t.Setenv("MIN_SIMILARITY", "high")

	cfg := config.Load()

	assert.Equal(t, 3, cfg.Retrieval.MaxQueries)
	assert.True(t, cfg.Rerank.Enabled)
	assert.Zero(t, cfg.Retrieval.MinSimilarity)
}

func TestLoad_SecretFromFile(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("s3cret\n"), 0o600))

	t.Setenv("DB_PASSWORD_FILE", secretFile)

	cfg := config.Load()
	assert.Equal(t, "s3cret", cfg.DB.Password, "file content is trimmed")
}

func TestLoad_SecretEnvWinsOverFile(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file"), 0o600))

	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("DB_PASSWORD_FILE", secretFile)

	cfg := config.Load()
	assert.Equal(t, "from-env", cfg.DB.Password)
}
