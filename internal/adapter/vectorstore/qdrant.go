package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// NewQdrantClient connects to a Qdrant instance. addr is "host:port"; a
// bare host assumes the default gRPC port 6334.
func NewQdrantClient(addr string) (*qdrant.Client, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant addr %q: %w", addr, err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return client, nil
}

// QdrantPassageStore implements domain.PassageStore over a Qdrant
// collection of paragraph-sized chunks.
type QdrantPassageStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantPassageStore constructs a passage store for the given collection.
func NewQdrantPassageStore(client *qdrant.Client, collection string) *QdrantPassageStore {
	return &QdrantPassageStore{client: client, collection: collection}
}

// Search returns the topK nearest passages with their payload metadata.
func (s *QdrantPassageStore) Search(ctx context.Context, vector []float32, topK int) ([]domain.PassageHit, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query passage collection: %w", err)
	}

	hits := make([]domain.PassageHit, 0, len(points))
	for _, point := range points {
		hits = append(hits, toPassageHit(point))
	}
	return hits, nil
}

func toPassageHit(point *qdrant.ScoredPoint) domain.PassageHit {
	hit := domain.PassageHit{
		Score:    point.Score,
		Metadata: make(map[string]string),
	}
	for key, value := range point.Payload {
		switch key {
		case "content", "text":
			hit.Content = value.GetStringValue()
		case "document_id":
			hit.DocumentID = value.GetStringValue()
		default:
			hit.Metadata[key] = value.GetStringValue()
		}
	}
	return hit
}

// QdrantSentenceStore implements domain.SentenceStore over a Qdrant
// collection of individual sentences, filtered per document.
type QdrantSentenceStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantSentenceStore constructs a sentence store for the given
// collection.
func NewQdrantSentenceStore(client *qdrant.Client, collection string) *QdrantSentenceStore {
	return &QdrantSentenceStore{client: client, collection: collection}
}

// QueryByDocument returns the closest sentences belonging to one document.
func (s *QdrantSentenceStore) QueryByDocument(ctx context.Context, vector []float32, documentID string, topK int) ([]domain.SentenceHit, error) {
	points, err := s.client.Query(ctx, s.documentQuery(vector, documentID, topK))
	if err != nil {
		return nil, fmt.Errorf("failed to query sentences for %q: %w", documentID, err)
	}
	return toSentenceHits(points), nil
}

// QueryByDocuments issues one batched request covering every document,
// keeping the rerank stage to a single round-trip.
func (s *QdrantSentenceStore) QueryByDocuments(ctx context.Context, vector []float32, documentIDs []string, topKPerDoc int) (map[string][]domain.SentenceHit, error) {
	if len(documentIDs) == 0 {
		return map[string][]domain.SentenceHit{}, nil
	}

	queries := make([]*qdrant.QueryPoints, len(documentIDs))
	for i, docID := range documentIDs {
		queries[i] = s.documentQuery(vector, docID, topKPerDoc)
	}

	batches, err := s.client.QueryBatch(ctx, &qdrant.QueryBatchPoints{
		CollectionName: s.collection,
		QueryPoints:    queries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to batch-query sentence collection: %w", err)
	}
	if len(batches) != len(documentIDs) {
		return nil, fmt.Errorf("expected %d batch results, got %d", len(documentIDs), len(batches))
	}

	out := make(map[string][]domain.SentenceHit, len(documentIDs))
	for i, batch := range batches {
		out[documentIDs[i]] = toSentenceHits(batch.GetResult())
	}
	return out, nil
}

// documentQuery builds a nearest-neighbor query scoped to one document.
// Sentence payloads carry the identifier under "DOI" in the original corpus
// builds and "doi" in newer ones, so the filter matches either.
func (s *QdrantSentenceStore) documentQuery(vector []float32, documentID string, topK int) *qdrant.QueryPoints {
	return &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Should: []*qdrant.Condition{
				qdrant.NewMatch("DOI", documentID),
				qdrant.NewMatch("doi", documentID),
			},
		},
	}
}

func toSentenceHits(points []*qdrant.ScoredPoint) []domain.SentenceHit {
	hits := make([]domain.SentenceHit, 0, len(points))
	for _, point := range points {
		hit := domain.SentenceHit{Score: point.Score}
		if payload := point.Payload; payload != nil {
			if text, ok := payload["text"]; ok {
				hit.Text = text.GetStringValue()
			} else if content, ok := payload["content"]; ok {
				hit.Text = content.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

var (
	_ domain.PassageStore  = (*QdrantPassageStore)(nil)
	_ domain.SentenceStore = (*QdrantSentenceStore)(nil)
)
