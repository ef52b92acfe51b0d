// Package ingest (re)builds the vector corpus from the product catalog:
// flatten each product to text, embed with a worker pool, and upsert in
// batches. Individual product failures are recorded, not fatal.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/catalogix/prodsearch/internal/domain"
	domingest "github.com/catalogix/prodsearch/internal/domain/ingest"
	"github.com/catalogix/prodsearch/internal/metrics"
)

// Config tunes the indexing run.
type Config struct {
	// Workers is the embedding concurrency.
	Workers int
	// BatchSize is the number of points per upsert call.
	BatchSize int
}

// Service rebuilds the search corpus from the catalog.
type Service struct {
	catalog     Catalog
	embedder    Embedder
	vectors     VectorStore
	invalidator KeywordInvalidator
	pool        *ants.Pool
	batchSize   int
	logger      *zap.Logger
}

// New creates the ingestion service with its embedding worker pool.
func New(
	catalog Catalog,
	embedder Embedder,
	vectors VectorStore,
	invalidator KeywordInvalidator,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("embedding pool: %w", err)
	}

	return &Service{
		catalog:     catalog,
		embedder:    embedder,
		vectors:     vectors,
		invalidator: invalidator,
		pool:        pool,
		batchSize:   cfg.BatchSize,
		logger:      logger,
	}, nil
}

// embedded is the per-product outcome of the embedding stage.
type embedded struct {
	doc    domain.Document
	vector []float32
	err    error
}

// Reindex reads the full catalog, embeds every product, and upserts the
// corpus. Products that fail to embed or store are reported per item; the
// run continues past them. On success the derived keyword index is dropped
// so the next search sees the fresh corpus.
func (s *Service) Reindex(ctx context.Context) (domingest.Report, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return domingest.Report{}, fmt.Errorf("list products: %w", err)
	}
	if err := s.vectors.EnsureCollection(ctx); err != nil {
		return domingest.Report{}, fmt.Errorf("ensure collection: %w", err)
	}

	results := s.embedAll(ctx, products)

	report := domingest.Report{Items: make([]domingest.Item, 0, len(products))}
	var (
		batchDocs    []domain.Document
		batchVectors [][]float32
		batchCodes   []string
	)

	flush := func() {
		if len(batchDocs) == 0 {
			return
		}
		if err := s.vectors.Upsert(ctx, batchDocs, batchVectors); err != nil {
			s.logger.Error("batch upsert failed",
				zap.Int("size", len(batchDocs)), zap.Error(err))
			for _, code := range batchCodes {
				report.Items = append(report.Items, domingest.NewFailed(code, err))
			}
		} else {
			for _, code := range batchCodes {
				report.Items = append(report.Items, domingest.NewIndexed(code))
			}
		}
		batchDocs, batchVectors, batchCodes = nil, nil, nil
	}

	for i, r := range results {
		code := products[i].Code
		if r.err != nil {
			s.logger.Warn("product skipped", zap.String("product_code", code), zap.Error(r.err))
			report.Items = append(report.Items, domingest.NewFailed(code, r.err))
			continue
		}
		batchDocs = append(batchDocs, r.doc)
		batchVectors = append(batchVectors, r.vector)
		batchCodes = append(batchCodes, code)
		if len(batchDocs) >= s.batchSize {
			flush()
		}
	}
	flush()

	s.invalidator.InvalidateKeywordIndex()

	metrics.IndexedProductsTotal.WithLabelValues("indexed").Add(float64(report.Indexed()))
	metrics.IndexedProductsTotal.WithLabelValues("failed").Add(float64(report.Failed()))

	s.logger.Info("reindex completed",
		zap.Int("indexed", report.Indexed()),
		zap.Int("failed", report.Failed()))
	return report, nil
}

// embedAll runs the embedding stage over the worker pool, preserving
// product order in the result slice.
func (s *Service) embedAll(ctx context.Context, products []domain.Product) []embedded {
	results := make([]embedded, len(products))
	var wg sync.WaitGroup

	for i, p := range products {
		i, p := i, p
		if p.Code == "" {
			results[i] = embedded{err: fmt.Errorf("product code is required")}
			continue
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			doc := buildDocument(p)
			emb, err := s.embedder.Embed(ctx, doc.Text)
			if err != nil {
				results[i] = embedded{err: fmt.Errorf("embed product: %w", err)}
				return
			}
			results[i] = embedded{doc: doc, vector: emb.Embedding}
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			results[i] = embedded{err: fmt.Errorf("submit embed task: %w", err)}
		}
	}

	wg.Wait()
	return results
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}
