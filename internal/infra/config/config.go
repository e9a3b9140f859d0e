package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime settings, loaded once from the environment.
type Config struct {
	Env  string
	Port string

	Embedding EmbeddingConfig
	LLM       LLMConfig
	Vector    VectorConfig
	DB        DBConfig
	Retrieval RetrievalConfig
	Rerank    RerankConfig
	Telemetry TelemetryConfig
}

// EmbeddingConfig points at the BGE embedding server.
type EmbeddingConfig struct {
	URL     string
	Model   string
	Timeout int // seconds
	RPS     float64
}

// LLMConfig points at the Ollama instance used for query translation.
type LLMConfig struct {
	URL     string
	Model   string
	Timeout int // seconds
}

// VectorConfig selects and addresses the vector-store backend.
type VectorConfig struct {
	// Backend is "qdrant" or "postgres".
	Backend            string
	QdrantAddr         string
	PassageCollection  string
	SentenceCollection string
}

// DBConfig holds PostgreSQL settings for the pgvector backend.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// RetrievalConfig holds query expansion and retrieval settings.
type RetrievalConfig struct {
	EnableExpansion bool
	MaxQueries      int
	TopKPerQuery    int
	DefaultTopK     int
	MinSimilarity   float64
	TermMappingFile string
	SynonymFile     string
}

// RerankConfig holds sentence-level reranking settings.
type RerankConfig struct {
	Enabled         bool
	CandidateCap    int
	SentencesPerDoc int
	TimeoutSeconds  int
	CacheSize       int
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads the configuration from environment variables, applying the
// production defaults for anything unset.
func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),
		Embedding: EmbeddingConfig{
			URL:     getEnv("EMBEDDING_URL", "http://bge-server:8001"),
			Model:   getEnv("EMBEDDING_MODEL", "bge-large-zh-v1.5"),
			Timeout: getEnvInt("EMBEDDING_TIMEOUT", 30),
			RPS:     getEnvFloat("EMBEDDING_RPS", 0),
		},
		LLM: LLMConfig{
			URL:     getEnv("LLM_URL", "http://ollama:11434"),
			Model:   getEnv("LLM_MODEL", "qwen2.5:7b"),
			Timeout: getEnvInt("LLM_TIMEOUT", 30),
		},
		Vector: VectorConfig{
			Backend:            getEnv("VECTOR_BACKEND", "qdrant"),
			QdrantAddr:         getEnv("QDRANT_ADDR", "qdrant:6334"),
			PassageCollection:  getEnv("QDRANT_PASSAGE_COLLECTION", "passages"),
			SentenceCollection: getEnv("QDRANT_SENTENCE_COLLECTION", "sentences"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "vector-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "retrieval_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "retrieval_password"),
			Name:     getEnv("DB_NAME", "literature_db"),
		},
		Retrieval: RetrievalConfig{
			EnableExpansion: getEnvBool("ENABLE_QUERY_EXPANSION", true),
			MaxQueries:      getEnvInt("MAX_QUERIES", 3),
			TopKPerQuery:    getEnvInt("TOP_K_PER_QUERY", 20),
			DefaultTopK:     getEnvInt("DEFAULT_TOP_K", 15),
			MinSimilarity:   getEnvFloat("MIN_SIMILARITY", 0),
			TermMappingFile: getEnv("TERM_MAPPING_FILE", "data/term_mapping.json"),
			SynonymFile:     getEnv("SYNONYM_FILE", "data/synonyms.json"),
		},
		Rerank: RerankConfig{
			Enabled:         getEnvBool("ENABLE_RERANKING", true),
			CandidateCap:    getEnvInt("RERANK_TOP_K", 20),
			SentencesPerDoc: getEnvInt("RERANK_SENTENCES_PER_DOC", 50),
			TimeoutSeconds:  getEnvInt("RERANK_TIMEOUT_SECONDS", 5),
			CacheSize:       getEnvInt("RERANK_CACHE_SIZE", 1024),
		},
		Telemetry: TelemetryConfig{
			Enabled:  getEnvBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
