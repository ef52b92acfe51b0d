package search

import (
	"context"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
	"github.com/catalogix/prodsearch/internal/domain/search/mode"
	"github.com/catalogix/prodsearch/internal/domain/search/request"
	"github.com/catalogix/prodsearch/internal/domain/search/result"
)

type mockAnalyzer struct {
	fn func(ctx context.Context, query string) (domain.QueryAnalysis, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, query string) (domain.QueryAnalysis, error) {
	if m.fn != nil {
		return m.fn(ctx, query)
	}
	return domain.QueryAnalysis{CleanQuery: query}, nil
}

type mockEmbedder struct {
	fn    func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockVectorStore struct {
	searchFn  func(ctx context.Context, vector []float32, filters filter.Expression, limit int) ([]result.Hit, error)
	scanFn    func(ctx context.Context) ([]domain.Document, error)
	countFn   func(ctx context.Context) (uint64, error)
	scanCalls atomic.Int32
}

func (m *mockVectorStore) Search(ctx context.Context, vector []float32, filters filter.Expression, limit int) ([]result.Hit, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, filters, limit)
	}
	return nil, nil
}

func (m *mockVectorStore) Scan(ctx context.Context) ([]domain.Document, error) {
	m.scanCalls.Add(1)
	if m.scanFn != nil {
		return m.scanFn(ctx)
	}
	return nil, nil
}

func (m *mockVectorStore) Count(ctx context.Context) (uint64, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

type mockCatalog struct {
	fn func(ctx context.Context, codes []string) (map[string]domain.ProductDetails, error)
}

func (m *mockCatalog) BatchGet(ctx context.Context, codes []string) (map[string]domain.ProductDetails, error) {
	if m.fn != nil {
		return m.fn(ctx, codes)
	}
	return map[string]domain.ProductDetails{}, nil
}

type testDeps struct {
	analyzer *mockAnalyzer
	embedder *mockEmbedder
	vectors  *mockVectorStore
	catalog  *mockCatalog
}

func newTestService(t *testing.T, cfg Config) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		analyzer: &mockAnalyzer{},
		embedder: &mockEmbedder{},
		vectors:  &mockVectorStore{},
		catalog:  &mockCatalog{},
	}
	svc := New(deps.analyzer, deps.embedder, deps.vectors, deps.catalog, cfg, zap.NewNop())
	return svc, deps
}

func mustRequest(t *testing.T, query string, m mode.Mode, topK int) request.Request {
	t.Helper()
	req, err := request.New(query, m, topK)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return req
}

func hit(id string, score float64, price float64, categories ...string) result.Hit {
	return result.NewHit(id, score, domain.Payload{
		ProductCode: id,
		Description: "desc " + id,
		BasePrice:   price,
		Categories:  categories,
	})
}
