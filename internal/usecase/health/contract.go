package health

import "context"

// VectorStoreChecker checks vector store availability and corpus size.
type VectorStoreChecker interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (uint64, error)
}

// CatalogPinger checks catalog database availability.
type CatalogPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
