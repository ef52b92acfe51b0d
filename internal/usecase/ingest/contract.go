package ingest

import (
	"context"

	"github.com/catalogix/prodsearch/internal/domain"
)

// Catalog reads the full product list to index.
type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Embedder vectorizes product text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorStore receives the indexed corpus.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, docs []domain.Document, vectors [][]float32) error
}

// KeywordInvalidator drops the derived keyword index after the corpus
// changes so the next search rebuilds it.
type KeywordInvalidator interface {
	InvalidateKeywordIndex()
}
