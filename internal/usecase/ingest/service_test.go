package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/catalogix/prodsearch/internal/domain"
	domingest "github.com/catalogix/prodsearch/internal/domain/ingest"
)

type mockCatalog struct {
	products []domain.Product
	err      error
}

func (m *mockCatalog) ListProducts(_ context.Context) ([]domain.Product, error) {
	return m.products, m.err
}

type mockEmbedder struct {
	fn func(text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.fn != nil {
		return m.fn(text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
}

type mockVectorStore struct {
	ensureErr error
	upsertFn  func(docs []domain.Document, vectors [][]float32) error
	upserts   [][]domain.Document
}

func (m *mockVectorStore) EnsureCollection(_ context.Context) error { return m.ensureErr }

func (m *mockVectorStore) Upsert(_ context.Context, docs []domain.Document, vectors [][]float32) error {
	m.upserts = append(m.upserts, docs)
	if m.upsertFn != nil {
		return m.upsertFn(docs, vectors)
	}
	return nil
}

type mockInvalidator struct {
	calls atomic.Int32
}

func (m *mockInvalidator) InvalidateKeywordIndex() { m.calls.Add(1) }

func products(n int) []domain.Product {
	ps := make([]domain.Product, n)
	for i := range ps {
		ps[i] = domain.Product{Code: fmt.Sprintf("P%03d", i), Description: "chair"}
	}
	return ps
}

func newTestService(t *testing.T, catalog *mockCatalog, embedder *mockEmbedder, vectors *mockVectorStore, inv *mockInvalidator, cfg Config) *Service {
	t.Helper()
	svc, err := New(catalog, embedder, vectors, inv, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func TestReindex_HappyPath(t *testing.T) {
	vectors := &mockVectorStore{}
	inv := &mockInvalidator{}
	svc := newTestService(t, &mockCatalog{products: products(3)}, &mockEmbedder{}, vectors, inv, Config{})

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Indexed() != 3 || report.Failed() != 0 {
		t.Errorf("report: indexed=%d failed=%d", report.Indexed(), report.Failed())
	}
	if len(vectors.upserts) != 1 {
		t.Errorf("upsert calls = %d", len(vectors.upserts))
	}
	if inv.calls.Load() != 1 {
		t.Error("keyword index must be invalidated after reindex")
	}
}

func TestReindex_EmbedFailureIsPerItem(t *testing.T) {
	embedder := &mockEmbedder{fn: func(text string) (domain.EmbeddingResult, error) {
		if strings.Contains(text, "P001") {
			return domain.EmbeddingResult{}, errors.New("rate limited")
		}
		return domain.EmbeddingResult{Embedding: []float32{0.1}}, nil
	}}
	vectors := &mockVectorStore{}
	svc := newTestService(t, &mockCatalog{products: products(3)}, embedder, vectors, &mockInvalidator{}, Config{})

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("per-item failure must not fail the run: %v", err)
	}
	if report.Indexed() != 2 || report.Failed() != 1 {
		t.Fatalf("report: indexed=%d failed=%d", report.Indexed(), report.Failed())
	}
	for _, item := range report.Items {
		if item.Code() == "P001" && item.Status() != domingest.StatusFailed {
			t.Errorf("P001 status = %q", item.Status())
		}
	}
}

func TestReindex_BatchSizeSplitsUpserts(t *testing.T) {
	vectors := &mockVectorStore{}
	svc := newTestService(t, &mockCatalog{products: products(5)}, &mockEmbedder{}, vectors, &mockInvalidator{}, Config{BatchSize: 2})

	if _, err := svc.Reindex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors.upserts) != 3 {
		t.Errorf("upsert calls = %d, want 3 (2+2+1)", len(vectors.upserts))
	}
}

func TestReindex_UpsertFailureMarksBatchFailed(t *testing.T) {
	vectors := &mockVectorStore{}
	vectors.upsertFn = func(docs []domain.Document, _ [][]float32) error {
		if docs[0].ID == "P000" {
			return errors.New("store unavailable")
		}
		return nil
	}
	svc := newTestService(t, &mockCatalog{products: products(4)}, &mockEmbedder{}, vectors, &mockInvalidator{}, Config{BatchSize: 2})

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("batch failure must not fail the run: %v", err)
	}
	if report.Failed() != 2 || report.Indexed() != 2 {
		t.Errorf("report: indexed=%d failed=%d", report.Indexed(), report.Failed())
	}
}

func TestReindex_MissingProductCode(t *testing.T) {
	ps := []domain.Product{{Code: "", Description: "nameless"}, {Code: "P1", Description: "chair"}}
	svc := newTestService(t, &mockCatalog{products: ps}, &mockEmbedder{}, &mockVectorStore{}, &mockInvalidator{}, Config{})

	report, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Failed() != 1 || report.Indexed() != 1 {
		t.Errorf("report: indexed=%d failed=%d", report.Indexed(), report.Failed())
	}
}

func TestReindex_CatalogFailureFails(t *testing.T) {
	wantErr := errors.New("db down")
	svc := newTestService(t, &mockCatalog{err: wantErr}, &mockEmbedder{}, &mockVectorStore{}, &mockInvalidator{}, Config{})

	if _, err := svc.Reindex(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v", err)
	}
}

func TestReindex_EnsureCollectionFailureFails(t *testing.T) {
	wantErr := errors.New("qdrant down")
	svc := newTestService(t, &mockCatalog{products: products(1)}, &mockEmbedder{}, &mockVectorStore{ensureErr: wantErr}, &mockInvalidator{}, Config{})

	if _, err := svc.Reindex(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v", err)
	}
}
