package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/domain"
)

const (
	generationTemperature = 0.0
	keepAliveSeconds      = 600
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string                 `json:"model"`
	Messages  []chatMessage          `json:"messages"`
	Stream    bool                   `json:"stream"`
	KeepAlive int                    `json:"keep_alive"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaClient sends prompts to Ollama's chat endpoint. The retrieval core
// uses it for query translation, so generation runs at temperature zero.
type OllamaClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// NewOllamaClient constructs a client for the given endpoint and model.
// If client is nil a default with the given timeout is created.
func NewOllamaClient(baseURL, model string, timeout time.Duration, client ...*http.Client) *OllamaClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &OllamaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
	}
}

// Generate sends one prompt and returns the model output.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	options := map[string]interface{}{
		"temperature": generationTemperature,
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}

	reqBody := chatRequest{
		Model: o.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Stream:    false,
		KeepAlive: keepAliveSeconds,
		Options:   options,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	return &domain.LLMResponse{
		Text: chatResp.Message.Content,
		Done: chatResp.Done,
	}, nil
}

// Version returns the model identifier for logging.
func (o *OllamaClient) Version() string {
	return o.Model
}

var _ domain.LLMClient = (*OllamaClient)(nil)
