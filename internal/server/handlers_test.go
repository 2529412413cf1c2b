package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/convoflow/convoflow/finance"
	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/market"
	"github.com/convoflow/convoflow/rag"
	"github.com/convoflow/convoflow/store"
	"github.com/convoflow/convoflow/summarizer"
)

type fixedQuotes struct{}

func (fixedQuotes) GlobalQuote(ctx context.Context, symbol string) market.Quote {
	return market.Quote{Symbol: symbol, Price: "123.45", ChangePercent: "1.2%"}
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	logger := zap.NewNop()
	collector := metrics.NewCollector("convoflow_test", logger)

	fin := finance.NewAssistant(
		fixedQuotes{},
		rag.NewStaticRetriever(rag.FallbackDocuments),
		store.NewMemoryCheckpointStore(logger),
		store.NewMemoryRunStore(logger),
		logger,
	)
	calls := summarizer.NewPipeline(
		store.NewMemoryCheckpointStore(logger),
		store.NewMemoryRunStore(logger),
		logger,
	)
	return NewHandlers(fin, calls, collector, logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFinanceRunEndpoint(t *testing.T) {
	router := newTestHandlers(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/finance/runs",
		`{"conversation_id": "conv-api", "query": "What is the stock price of AAPL?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result finance.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "conv-api", result.Metadata.ConversationID)
	assert.Equal(t, finance.AgentStockQuote, result.Route.AgentID)
	assert.Contains(t, result.Answer, "123.45")
}

func TestFinanceRunRejectsMalformedBody(t *testing.T) {
	router := newTestHandlers(t).Router()
	rec := doJSON(t, router, http.MethodPost, "/v1/finance/runs", `{"query": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinanceConversationReads(t *testing.T) {
	router := newTestHandlers(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/finance/runs",
		`{"conversation_id": "conv-hist", "query": "How should I diversify?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/v1/finance/runs",
		`{"conversation_id": "conv-hist", "query": "Any portfolio tips?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/finance/conversations/conv-hist/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runsBody struct {
		Runs []json.RawMessage `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runsBody))
	assert.Len(t, runsBody.Runs, 2)

	rec = doJSON(t, router, http.MethodGet, "/v1/finance/conversations/conv-hist/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result finance.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Any portfolio tips?", result.Request.Query)

	rec = doJSON(t, router, http.MethodGet, "/v1/finance/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFinanceResultUnknownConversationIs404(t *testing.T) {
	router := newTestHandlers(t).Router()
	rec := doJSON(t, router, http.MethodGet, "/v1/finance/conversations/conv-missing/result", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallRunEndpoint(t *testing.T) {
	router := newTestHandlers(t).Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/calls/runs",
		`{"conversation_id": "conv-call", "agent_name": "Dana", "transcript": "Hello. Thanks for calling."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result summarizer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "conv-call", result.Metadata.ConversationID)
	assert.NotEmpty(t, result.Summary.Summary)
}

func TestCallRunMissingInputIs400(t *testing.T) {
	router := newTestHandlers(t).Router()
	rec := doJSON(t, router, http.MethodPost, "/v1/calls/runs", `{"agent_name": "Dana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "audio path or a transcript")
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	router := newTestHandlers(t).Router()

	rec := doJSON(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
