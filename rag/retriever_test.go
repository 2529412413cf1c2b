package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	vectors [][]float64
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

type stubSearcher struct {
	results []SearchResult
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, q []float64, topK int) ([]SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestRetrieveReturnsVectorHits(t *testing.T) {
	r := NewVectorRetriever(
		&stubEmbedder{vectors: [][]float64{{1, 0}}},
		&stubSearcher{results: []SearchResult{
			{Document: Document{ID: "a", Title: "A"}, Score: 0.9},
			{Document: Document{ID: "b", Title: "B"}, Score: 0.5},
		}},
		5, FallbackDocuments, zap.NewNop(),
	)

	docs := r.Retrieve(context.Background(), "what is an index fund")
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
}

func TestRetrieveFallsBackOnEmbeddingFailure(t *testing.T) {
	misses := 0
	r := NewVectorRetriever(
		&stubEmbedder{err: errors.New("quota exceeded")},
		&stubSearcher{},
		5, FallbackDocuments, zap.NewNop(),
		WithFallbackObserver(func() { misses++ }),
	)

	docs := r.Retrieve(context.Background(), "anything")
	assert.NotEmpty(t, docs, "fallback list is never empty")
	assert.Equal(t, 1, misses)
}

func TestRetrieveFallsBackOnSearchFailure(t *testing.T) {
	r := NewVectorRetriever(
		&stubEmbedder{vectors: [][]float64{{1, 0}}},
		&stubSearcher{err: errors.New("store unreachable")},
		5, FallbackDocuments, zap.NewNop(),
	)
	assert.NotEmpty(t, r.Retrieve(context.Background(), "anything"))
}

func TestRetrieveFallsBackWhenUnconfigured(t *testing.T) {
	r := NewVectorRetriever(nil, nil, 5, FallbackDocuments, zap.NewNop())
	docs := r.Retrieve(context.Background(), "anything")
	assert.Equal(t, FallbackDocuments(), docs)
}

func TestStaticRetrieverServesFallback(t *testing.T) {
	r := NewStaticRetriever(nil)
	docs := r.Retrieve(context.Background(), "ignored")
	assert.NotEmpty(t, docs)
	for _, d := range docs {
		assert.NotEmpty(t, d.Title)
		assert.NotEmpty(t, d.Snippet())
	}
}

func TestInMemoryVectorStoreSearchRanksByCosine(t *testing.T) {
	s := NewInMemoryVectorStore(zap.NewNop())
	ctx := context.Background()

	err := s.AddDocuments(ctx, []Document{
		{ID: "x", Embedding: []float64{1, 0}},
		{ID: "y", Embedding: []float64{0, 1}},
		{ID: "z", Embedding: []float64{0.9, 0.1}},
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].Document.ID)
	assert.Equal(t, "z", results[1].Document.ID)
}

func TestInMemoryVectorStoreRejectsMissingEmbedding(t *testing.T) {
	s := NewInMemoryVectorStore(zap.NewNop())
	err := s.AddDocuments(context.Background(), []Document{{ID: "bad"}})
	assert.Error(t, err)
}

func TestDocumentSnippetBounds(t *testing.T) {
	d := Document{Content: "line one\nline two"}
	assert.Equal(t, "line one line two", d.Snippet())

	long := Document{Content: strings.Repeat("a", 300)}
	assert.Len(t, long.Snippet(), 203)
	assert.True(t, strings.HasSuffix(long.Snippet(), "..."))
}
