package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
	"github.com/catalogix/prodsearch/internal/domain/search/mode"
	"github.com/catalogix/prodsearch/internal/domain/search/result"
)

func TestSearch_HybridFiltered(t *testing.T) {
	// Corpus: a mesh chair under the price cap and a wood chair above it.
	// The analyzer extracts filters that only the mesh chair passes.
	svc, deps := newTestService(t, Config{RetrievalSize: 20})

	lte := 500.0
	r, _ := filter.NewRangeBounds(nil, nil, nil, &lte)
	priceCond, _ := filter.NewRange("base_price", r)
	catCond, _ := filter.NewAnyOf("categories", []string{"Mesh Seating"})
	expr, _ := filter.NewExpression([]filter.Condition{priceCond, catCond})

	deps.analyzer.fn = func(_ context.Context, _ string) (domain.QueryAnalysis, error) {
		return domain.QueryAnalysis{CleanQuery: "chair", Filters: expr}, nil
	}
	deps.vectors.searchFn = func(_ context.Context, _ []float32, filters filter.Expression, limit int) ([]result.Hit, error) {
		if filters.IsEmpty() {
			t.Error("expected translated filters to reach the vector store")
		}
		if limit != 20 {
			t.Errorf("limit = %d, want retrieval size 20", limit)
		}
		return []result.Hit{hit("1", 0.9, 300, "Mesh Seating")}, nil
	}
	deps.vectors.scanFn = func(_ context.Context) ([]domain.Document, error) {
		return []domain.Document{
			{ID: "1", Text: "ergonomic mesh chair", Payload: domain.Payload{ProductCode: "1"}},
			{ID: "2", Text: "wood dining chair", Payload: domain.Payload{ProductCode: "2"}},
		}, nil
	}
	deps.catalog.fn = func(_ context.Context, codes []string) (map[string]domain.ProductDetails, error) {
		return map[string]domain.ProductDetails{
			"1": {Series: "Mesh Pro", Features: []domain.Feature{{Code: "F1", Description: "lumbar support"}}},
		}, nil
	}

	resp, err := svc.Search(context.Background(), mustRequest(t, "mesh chair under 500", mode.Hybrid, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Method != MethodHybrid {
		t.Errorf("Method = %q", resp.Method)
	}
	if resp.AnalyzedQuery != "chair" {
		t.Errorf("AnalyzedQuery = %q", resp.AnalyzedQuery)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(resp.Results))
	}
	got := resp.Results[0]
	if got.ProductCode != "1" {
		t.Errorf("ProductCode = %q", got.ProductCode)
	}
	if got.Series != "Mesh Pro" {
		t.Errorf("Series = %q", got.Series)
	}
	if len(got.Features) != 1 || got.Features[0].Code != "F1" {
		t.Errorf("Features = %v", got.Features)
	}
	if got.Score <= 0 {
		t.Errorf("Score = %f, want fused RRF score > 0", got.Score)
	}
}

func TestSearch_SemanticOnly(t *testing.T) {
	svc, deps := newTestService(t, Config{RetrievalSize: 20})

	deps.vectors.searchFn = func(_ context.Context, _ []float32, filters filter.Expression, limit int) ([]result.Hit, error) {
		if limit != 5 {
			t.Errorf("limit = %d, want topK 5 in semantic-only mode", limit)
		}
		return []result.Hit{hit("2", 0.8, 800), hit("1", 0.7, 300)}, nil
	}

	resp, err := svc.Search(context.Background(), mustRequest(t, "chair", mode.Semantic, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Method != MethodSemantic {
		t.Errorf("Method = %q", resp.Method)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d", len(resp.Results))
	}
	// No fusion: similarity scores pass through in store order.
	if resp.Results[0].ProductCode != "2" || resp.Results[0].Score != 0.8 {
		t.Errorf("Results[0] = %+v", resp.Results[0])
	}
	if deps.vectors.scanCalls.Load() != 0 {
		t.Error("semantic-only search must not build the keyword index")
	}
}

func TestSearch_AnalyzerFailureDegrades(t *testing.T) {
	svc, deps := newTestService(t, Config{})

	deps.analyzer.fn = func(_ context.Context, _ string) (domain.QueryAnalysis, error) {
		return domain.QueryAnalysis{}, errors.New("model overloaded")
	}
	var gotQuery string
	deps.embedder.fn = func(_ context.Context, text string) (domain.EmbeddingResult, error) {
		gotQuery = text
		return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
	}
	deps.vectors.searchFn = func(_ context.Context, _ []float32, filters filter.Expression, _ int) ([]result.Hit, error) {
		if !filters.IsEmpty() {
			t.Error("fallback search must carry no filters")
		}
		return []result.Hit{hit("1", 0.9, 300)}, nil
	}

	resp, err := svc.Search(context.Background(), mustRequest(t, "mesh chair", mode.Semantic, 5))
	if err != nil {
		t.Fatalf("analyzer failure must not fail the request: %v", err)
	}
	if gotQuery != "mesh chair" {
		t.Errorf("embedded query = %q, want raw query", gotQuery)
	}
	if resp.AnalyzedQuery != "mesh chair" {
		t.Errorf("AnalyzedQuery = %q", resp.AnalyzedQuery)
	}
}

func TestSearch_EmbedderFailureFails(t *testing.T) {
	svc, deps := newTestService(t, Config{})
	wantErr := errors.New("provider down")
	deps.embedder.fn = func(_ context.Context, _ string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{}, wantErr
	}

	_, err := svc.Search(context.Background(), mustRequest(t, "chair", mode.Semantic, 5))
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped %v", err, wantErr)
	}
}

func TestSearch_VectorStoreFailureFails(t *testing.T) {
	svc, deps := newTestService(t, Config{})
	deps.vectors.searchFn = func(_ context.Context, _ []float32, _ filter.Expression, _ int) ([]result.Hit, error) {
		return nil, domain.ErrVectorStoreError
	}

	_, err := svc.Search(context.Background(), mustRequest(t, "chair", mode.Semantic, 5))
	if !errors.Is(err, domain.ErrVectorStoreError) {
		t.Fatalf("error = %v", err)
	}
}

func TestSearch_KeywordOnlyIDsDropped(t *testing.T) {
	// "2" is a strong keyword hit but was never retrieved by the vector
	// path, so it has no display payload and must not surface.
	svc, deps := newTestService(t, Config{})

	deps.vectors.searchFn = func(_ context.Context, _ []float32, _ filter.Expression, _ int) ([]result.Hit, error) {
		return []result.Hit{hit("1", 0.9, 300)}, nil
	}
	deps.vectors.scanFn = func(_ context.Context) ([]domain.Document, error) {
		return []domain.Document{
			{ID: "1", Text: "mesh chair"},
			{ID: "2", Text: "wonderchair wonderchair wonderchair"},
		}, nil
	}

	resp, err := svc.Search(context.Background(), mustRequest(t, "wonderchair", mode.Hybrid, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range resp.Results {
		if r.ProductCode == "2" {
			t.Error("keyword-only hit must be dropped from final output")
		}
	}
}

func TestSearch_EnrichmentMissKeepsRecord(t *testing.T) {
	svc, deps := newTestService(t, Config{})

	deps.vectors.searchFn = func(_ context.Context, _ []float32, _ filter.Expression, _ int) ([]result.Hit, error) {
		return []result.Hit{hit("GHOST", 0.9, 100)}, nil
	}
	deps.catalog.fn = func(_ context.Context, _ []string) (map[string]domain.ProductDetails, error) {
		return map[string]domain.ProductDetails{}, nil
	}

	resp, err := svc.Search(context.Background(), mustRequest(t, "chair", mode.Semantic, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, join miss must not drop the record", len(resp.Results))
	}
	got := resp.Results[0]
	if got.Series != "" || len(got.Features) != 0 {
		t.Errorf("joined fields must stay empty on a miss, got %+v", got)
	}
}

func TestSearch_ConcurrentRequestsBuildIndexOnce(t *testing.T) {
	svc, deps := newTestService(t, Config{})

	gate := make(chan struct{})
	deps.vectors.scanFn = func(_ context.Context) ([]domain.Document, error) {
		<-gate
		return []domain.Document{{ID: "1", Text: "mesh chair"}}, nil
	}
	deps.vectors.searchFn = func(_ context.Context, _ []float32, _ filter.Expression, _ int) ([]result.Hit, error) {
		return []result.Hit{hit("1", 0.9, 300)}, nil
	}

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Search(context.Background(), mustRequest(t, "mesh chair", mode.Hybrid, 5))
		}(i)
	}
	close(gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
	if n := deps.vectors.scanCalls.Load(); n != 1 {
		t.Errorf("scan calls = %d, want exactly 1 build", n)
	}
}

func TestSearch_InvalidateTriggersRebuild(t *testing.T) {
	svc, deps := newTestService(t, Config{})
	deps.vectors.scanFn = func(_ context.Context) ([]domain.Document, error) {
		return []domain.Document{{ID: "1", Text: "mesh chair"}}, nil
	}
	deps.vectors.searchFn = func(_ context.Context, _ []float32, _ filter.Expression, _ int) ([]result.Hit, error) {
		return []result.Hit{hit("1", 0.9, 300)}, nil
	}

	req := mustRequest(t, "mesh chair", mode.Hybrid, 5)
	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if n := deps.vectors.scanCalls.Load(); n != 1 {
		t.Fatalf("scan calls = %d, index should be reused", n)
	}

	svc.InvalidateKeywordIndex()
	if _, err := svc.Search(context.Background(), req); err != nil {
		t.Fatalf("search after invalidate: %v", err)
	}
	if n := deps.vectors.scanCalls.Load(); n != 2 {
		t.Errorf("scan calls = %d, want rebuild after invalidation", n)
	}
}

func TestSearch_IndexBuildSurvivesCallerCancel(t *testing.T) {
	svc, deps := newTestService(t, Config{})
	deps.vectors.scanFn = func(ctx context.Context) ([]domain.Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []domain.Document{{ID: "1", Text: "mesh chair"}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx, err := svc.ensureKeywordIndex(ctx)
	if err != nil {
		t.Fatalf("build with cancelled caller: %v", err)
	}
	if idx == nil || idx.Len() != 1 {
		t.Fatalf("idx = %v, want built index with 1 document", idx)
	}
}

func TestSearch_BuildFailureFailsRequest(t *testing.T) {
	svc, deps := newTestService(t, Config{})
	deps.vectors.scanFn = func(_ context.Context) ([]domain.Document, error) {
		return nil, domain.ErrVectorStoreError
	}

	_, err := svc.Search(context.Background(), mustRequest(t, "chair", mode.Hybrid, 5))
	if !errors.Is(err, domain.ErrVectorStoreError) {
		t.Fatalf("error = %v", err)
	}
	// A failed build must not poison the guard: a later request retries.
	deps.vectors.scanFn = func(_ context.Context) ([]domain.Document, error) {
		return []domain.Document{{ID: "1", Text: "chair"}}, nil
	}
	deps.vectors.searchFn = func(_ context.Context, _ []float32, _ filter.Expression, _ int) ([]result.Hit, error) {
		return nil, nil
	}
	if _, err := svc.Search(context.Background(), mustRequest(t, "chair", mode.Hybrid, 5)); err != nil {
		t.Fatalf("retry after failed build: %v", err)
	}
}

func TestHealth_ReportsCount(t *testing.T) {
	svc, deps := newTestService(t, Config{})
	deps.vectors.countFn = func(_ context.Context) (uint64, error) { return 42, nil }

	n, err := svc.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d", n)
	}
}
