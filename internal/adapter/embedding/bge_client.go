package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

// embedRequest is the OpenAI-compatible payload accepted by the BGE server.
type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embedResponseItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Data []embedResponseItem `json:"data"`
}

// BGEClient calls a BGE embedding server over its OpenAI-compatible
// /v1/embeddings endpoint. Requests are batched; a rate limiter keeps a
// burst of expanded queries from overwhelming the GPU service.
type BGEClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBGEClient constructs an embedding client. rps caps outbound requests
// per second; zero or negative disables limiting. If client is nil a
// default with the given timeout is created.
func NewBGEClient(baseURL, model string, timeout time.Duration, rps float64, logger *slog.Logger, client ...*http.Client) *BGEClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &BGEClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		limiter: limiter,
		logger:  logger,
	}
}

// Encode embeds all texts in one request and returns the vectors in input
// order.
func (c *BGEClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limit wait: %w", err)
		}
	}

	start := time.Now()
	c.logger.Info("embedding_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", c.Model))

	payload, err := json.Marshal(embedRequest{Model: c.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("embedding_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call embedding endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("embedding_bad_status",
			slog.Int("status_code", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(embedResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embedResp.Data))
	}

	// The server may return items out of order; the index field is
	// authoritative.
	sort.Slice(embedResp.Data, func(i, j int) bool {
		return embedResp.Data[i].Index < embedResp.Data[j].Index
	})
	vectors := make([][]float32, len(embedResp.Data))
	for i, item := range embedResp.Data {
		vectors[i] = item.Embedding
	}

	c.logger.Info("embedding_completed",
		slog.Int("embedding_count", len(vectors)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return vectors, nil
}

// Version returns the model identifier for logging.
func (c *BGEClient) Version() string {
	return c.Model
}

var _ domain.VectorEncoder = (*BGEClient)(nil)
