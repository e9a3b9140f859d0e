package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zhuyinghua6961/LiFeO4Agent/internal/adapter/httpapi"
	"github.com/zhuyinghua6961/LiFeO4Agent/internal/usecase"
)

// MockSearchUsecase is a test double for usecase.SearchWithExpansionUsecase.
type MockSearchUsecase struct {
	mock.Mock
}

func (m *MockSearchUsecase) Execute(ctx context.Context, input usecase.SearchInput) (*usecase.SearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.SearchOutput), args.Error(1)
}

func performSearch(t *testing.T, uc usecase.SearchWithExpansionUsecase, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	httpapi.NewHandler(uc).Register(e)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSearch_Success(t *testing.T) {
	uc := new(MockSearchUsecase)
	uc.On("Execute", mock.Anything, usecase.SearchInput{
		Question:        "LiFePO4 cycle life",
		TopK:            5,
		EnableExpansion: true,
		EnableReranking: true,
	}).Return(&usecase.SearchOutput{
		Results: []usecase.SearchResult{
			{DocumentID: "10.1/a", Content: "passage", Score: 0.9},
		},
	}, nil)

	rec := performSearch(t, uc, `{"question": "LiFePO4 cycle life", "top_k": 5}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httpapi.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "10.1/a", resp.Results[0].DocumentID)
	assert.Empty(t, resp.Message)
	uc.AssertExpectations(t)
}

func TestSearch_StageFlagsForwarded(t *testing.T) {
	uc := new(MockSearchUsecase)
	uc.On("Execute", mock.Anything, usecase.SearchInput{
		Question:        "q",
		EnableExpansion: false,
		EnableReranking: true,
	}).Return(&usecase.SearchOutput{}, nil)

	rec := performSearch(t, uc, `{"question": "q", "enable_expansion": false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	uc.AssertExpectations(t)
}

func TestSearch_EmptyQuestionRejected(t *testing.T) {
	uc := new(MockSearchUsecase)

	for _, body := range []string{`{"question": ""}`, `{"question": "   "}`, `{}`} {
		rec := performSearch(t, uc, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	uc.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSearch_MalformedBodyRejected(t *testing.T) {
	uc := new(MockSearchUsecase)
	rec := performSearch(t, uc, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_BackendFailure(t *testing.T) {
	uc := new(MockSearchUsecase)
	uc.On("Execute", mock.Anything, mock.Anything).
		Return(nil, errors.New("vector store unreachable"))

	rec := performSearch(t, uc, `{"question": "q"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "retrieval backend unavailable")
}

func TestSearch_NoResultsMessagePassedThrough(t *testing.T) {
	uc := new(MockSearchUsecase)
	uc.On("Execute", mock.Anything, mock.Anything).
		Return(&usecase.SearchOutput{Message: usecase.NoResultsMessage}, nil)

	rec := performSearch(t, uc, `{"question": "obscure"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httpapi.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, usecase.NoResultsMessage, resp.Message)
	assert.Empty(t, resp.Results)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	httpapi.NewHandler(new(MockSearchUsecase)).Register(e)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
