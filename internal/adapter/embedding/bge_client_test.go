package embedding_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/embedding"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestEncode_BatchRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bge-large-zh-v1.5", req.Model)
		assert.Equal(t, []string{"query one", "query two"}, req.Input)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2}, "index": 0},
				{"embedding": []float32{0.3, 0.4}, "index": 1},
			},
		})
	}))
	defer server.Close()

	client := embedding.NewBGEClient(server.URL, "bge-large-zh-v1.5", 5*time.Second, 0, discardLogger())
	vectors, err := client.Encode(context.Background(), []string{"query one", "query two"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestEncode_OutOfOrderResponseSortedByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.3, 0.4}, "index": 1},
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := embedding.NewBGEClient(server.URL, "bge-large-zh-v1.5", 5*time.Second, 0, discardLogger())
	vectors, err := client.Encode(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestEncode_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := embedding.NewBGEClient(server.URL, "m", 5*time.Second, 0, discardLogger())
	_, err := client.Encode(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings, got 1")
}

func TestEncode_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := embedding.NewBGEClient(server.URL, "m", 5*time.Second, 0, discardLogger())
	_, err := client.Encode(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestEncode_EmptyInput(t *testing.T) {
	client := embedding.NewBGEClient("http://unused", "m", 5*time.Second, 0, discardLogger())
	vectors, err := client.Encode(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEncode_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	client := embedding.NewBGEClient(server.URL, "m", 5*time.Second, 0, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Encode(ctx, []string{"a"})
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	client := embedding.NewBGEClient("http://unused", "bge-large-zh-v1.5", time.Second, 0, discardLogger())
	assert.Equal(t, "bge-large-zh-v1.5", client.Version())
}
