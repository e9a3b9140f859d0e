package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/embedding"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/llm"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/repository"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/vectorstore"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/config"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/infra/httpclient"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase/retrieval"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Encoder   domain.VectorEncoder
	Passages  domain.PassageStore
	Sentences domain.SentenceStore
	Expander  *retrieval.Expander
	Search    usecase.SearchWithExpansionUsecase

	closers []func() error
}

// Close releases backend connections.
func (c *ApplicationComponents) Close() {
	for _, fn := range c.closers {
		_ = fn()
	}
}

// NewApplicationComponents wires the retrieval pipeline from config.
func NewApplicationComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ApplicationComponents, error) {
	components := &ApplicationComponents{}

	// Shared HTTP clients with connection pooling.
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.Embedding.Timeout) * time.Second)
	llmHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLM.Timeout) * time.Second)

	encoder := embedding.NewBGEClient(
		cfg.Embedding.URL, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.Timeout)*time.Second,
		cfg.Embedding.RPS, log, embedderHTTP,
	)
	translator := llm.NewOllamaClient(
		cfg.LLM.URL, cfg.LLM.Model,
		time.Duration(cfg.LLM.Timeout)*time.Second,
		llmHTTP,
	)

	passages, sentences, err := newVectorStores(ctx, cfg, components)
	if err != nil {
		return nil, err
	}

	tables := retrieval.LoadTermTables(cfg.Retrieval.TermMappingFile, cfg.Retrieval.SynonymFile, log)
	expander := retrieval.NewExpander(translator, tables, cfg.Retrieval.MaxQueries, log)
	retriever := retrieval.NewMultiQueryRetriever(encoder, passages, log)
	reranker := retrieval.NewSentenceReranker(encoder, sentences, retrieval.RerankConfig{
		CandidateCap:    cfg.Rerank.CandidateCap,
		SentencesPerDoc: cfg.Rerank.SentencesPerDoc,
		Timeout:         time.Duration(cfg.Rerank.TimeoutSeconds) * time.Second,
		CacheSize:       cfg.Rerank.CacheSize,
	}, log)

	search := usecase.NewSearchWithExpansionUsecase(
		expander, retriever, reranker, encoder, passages,
		usecase.SearchConfig{
			TopKPerQuery:    cfg.Retrieval.TopKPerQuery,
			DefaultTopK:     cfg.Retrieval.DefaultTopK,
			EnableExpansion: cfg.Retrieval.EnableExpansion,
			EnableReranking: cfg.Rerank.Enabled,
			MinSimilarity:   float32(cfg.Retrieval.MinSimilarity),
		},
		log,
	)

	components.Encoder = encoder
	components.Passages = passages
	components.Sentences = sentences
	components.Expander = expander
	components.Search = search
	return components, nil
}

func newVectorStores(ctx context.Context, cfg *config.Config, components *ApplicationComponents) (domain.PassageStore, domain.SentenceStore, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		client, err := vectorstore.NewQdrantClient(cfg.Vector.QdrantAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		components.closers = append(components.closers, client.Close)
		passages := vectorstore.NewQdrantPassageStore(client, cfg.Vector.PassageCollection)
		sentences := vectorstore.NewQdrantSentenceStore(client, cfg.Vector.SentenceCollection)
		return passages, sentences, nil
	case "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		pool, err := infra.NewPostgresDB(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		components.closers = append(components.closers, func() error {
			pool.Close()
			return nil
		})
		return repository.NewPassageRepository(pool), repository.NewSentenceRepository(pool), nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}
