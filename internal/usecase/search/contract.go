package search

import (
	"context"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
	"github.com/catalogix/prodsearch/internal/domain/search/result"
)

// Analyzer extracts search terms and structured filters from a raw query.
// Best-effort: the service degrades to the raw query if it fails.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (domain.QueryAnalysis, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore is the filtered similarity store holding the indexed corpus.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, filters filter.Expression, limit int) ([]result.Hit, error)
	Scan(ctx context.Context) ([]domain.Document, error)
	Count(ctx context.Context) (uint64, error)
}

// Catalog joins relational product details onto search results.
type Catalog interface {
	BatchGet(ctx context.Context, codes []string) (map[string]domain.ProductDetails, error)
}
