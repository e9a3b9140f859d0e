package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase"
)

// SearchRequest is the request body for POST /v1/search.
type SearchRequest struct {
	Question        string `json:"question"`
	TopK            int    `json:"top_k,omitempty"`
	EnableExpansion *bool  `json:"enable_expansion,omitempty"`
	EnableReranking *bool  `json:"enable_reranking,omitempty"`
}

// SearchResponseResult is one ranked passage in the response.
type SearchResponseResult struct {
	DocumentID  string            `json:"document_id"`
	Content     string            `json:"content"`
	Score       float32           `json:"score"`
	SourceQuery string            `json:"source_query,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// SearchResponse is the response body for POST /v1/search.
type SearchResponse struct {
	Results     []SearchResponseResult `json:"results"`
	Message     string                 `json:"message,omitempty"`
	Diagnostics usecase.Diagnostics    `json:"diagnostics"`
}

// Handler exposes the retrieval pipeline over HTTP.
type Handler struct {
	search usecase.SearchWithExpansionUsecase
}

// NewHandler constructs the HTTP handler.
func NewHandler(search usecase.SearchWithExpansionUsecase) *Handler {
	return &Handler{search: search}
}

// Register mounts the routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/search", h.Search)
	e.GET("/v1/health", h.Health)
}

// Search runs the expansion+retrieval+rerank pipeline for one question.
func (h *Handler) Search(ctx echo.Context) error {
	var req SearchRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	input := usecase.SearchInput{
		Question:        req.Question,
		TopK:            req.TopK,
		EnableExpansion: true,
		EnableReranking: true,
	}
	if req.EnableExpansion != nil {
		input.EnableExpansion = *req.EnableExpansion
	}
	if req.EnableReranking != nil {
		input.EnableReranking = *req.EnableReranking
	}

	output, err := h.search.Execute(ctx.Request().Context(), input)
	if err != nil {
		if errors.Is(err, ctx.Request().Context().Err()) {
			return ctx.JSON(http.StatusRequestTimeout, map[string]string{"error": "request cancelled"})
		}
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": "retrieval backend unavailable"})
	}

	results := make([]SearchResponseResult, len(output.Results))
	for i, r := range output.Results {
		results[i] = SearchResponseResult{
			DocumentID:  r.DocumentID,
			Content:     r.Content,
			Score:       r.Score,
			SourceQuery: r.SourceQuery,
			Metadata:    r.Metadata,
		}
	}

	return ctx.JSON(http.StatusOK, SearchResponse{
		Results:     results,
		Message:     output.Message,
		Diagnostics: output.Diagnostics,
	})
}

// Health reports liveness.
func (h *Handler) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
