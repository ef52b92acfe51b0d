package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed search request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrAnalyzerUnavailable signals a query analyzer failure. The search
	// orchestrator recovers from it: the request degrades to the raw query
	// with no filters.
	ErrAnalyzerUnavailable = errors.New("query analyzer unavailable")
	// ErrVectorStoreError signals a vector store failure.
	ErrVectorStoreError = errors.New("vector store error")
	// ErrCatalogUnavailable signals a relational catalog failure.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
