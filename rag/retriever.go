package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Document is one retrievable knowledge-base entry.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"-"`
}

// Snippet returns the document content flattened and bounded for display.
func (d Document) Snippet() string {
	text := strings.TrimSpace(strings.ReplaceAll(d.Content, "\n", " "))
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}

// Retriever returns ranked documents for a free-text query. Implementations
// never return an error and never return an empty list.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []Document
}

// FallbackFunc supplies the static documents used when vector retrieval is
// unavailable.
type FallbackFunc func() []Document

// VectorRetriever embeds the query and searches a vector store, falling
// back to static documents on any failure.
type VectorRetriever struct {
	embedder Embedder
	search   Searcher
	topK     int
	fallback FallbackFunc
	onMiss   func()
	logger   *zap.Logger
}

// Searcher is the vector-store search surface the retriever depends on.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]SearchResult, error)
}

// SearchResult is one ranked vector-store hit.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// RetrieverOption configures a VectorRetriever.
type RetrieverOption func(*VectorRetriever)

// WithFallbackObserver registers a callback invoked whenever the static
// fallback is served instead of vector hits.
func WithFallbackObserver(fn func()) RetrieverOption {
	return func(r *VectorRetriever) { r.onMiss = fn }
}

// NewVectorRetriever creates a retriever. embedder may be nil, in which
// case every query is served from the fallback.
func NewVectorRetriever(embedder Embedder, search Searcher, topK int, fallback FallbackFunc, logger *zap.Logger, opts ...RetrieverOption) *VectorRetriever {
	if topK <= 0 {
		topK = 5
	}
	if fallback == nil {
		fallback = FallbackDocuments
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &VectorRetriever{
		embedder: embedder,
		search:   search,
		topK:     topK,
		fallback: fallback,
		logger:   logger.With(zap.String("component", "retriever")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns ranked documents for the query, or the static fallback
// list when vector retrieval cannot serve it.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string) []Document {
	if r.embedder == nil || r.search == nil {
		return r.serveFallback("retrieval not configured")
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		r.logger.Warn("embedding failed, serving fallback", zap.Error(err))
		return r.serveFallback("embedding failed")
	}

	hits, err := r.search.Search(ctx, vectors[0], r.topK)
	if err != nil {
		r.logger.Warn("vector search failed, serving fallback", zap.Error(err))
		return r.serveFallback("vector search failed")
	}
	if len(hits) == 0 {
		return r.serveFallback("no hits")
	}

	docs := make([]Document, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, hit.Document)
	}
	return docs
}

func (r *VectorRetriever) serveFallback(reason string) []Document {
	if r.onMiss != nil {
		r.onMiss()
	}
	r.logger.Debug("serving static fallback", zap.String("reason", reason))
	return r.fallback()
}

// StaticRetriever always serves the fallback list. It is the zero-config
// default used when no embedding endpoint is configured.
type StaticRetriever struct {
	fallback FallbackFunc
}

// NewStaticRetriever creates a retriever over a fixed document list.
func NewStaticRetriever(fallback FallbackFunc) *StaticRetriever {
	if fallback == nil {
		fallback = FallbackDocuments
	}
	return &StaticRetriever{fallback: fallback}
}

// Retrieve returns the static documents regardless of query.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string) []Document {
	return r.fallback()
}
