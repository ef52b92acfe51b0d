// Package search runs the hybrid retrieval pipeline: query analysis,
// parallel semantic and keyword retrieval, rank fusion, and catalog
// enrichment.
package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
	"github.com/catalogix/prodsearch/internal/domain/search/mode"
	"github.com/catalogix/prodsearch/internal/domain/search/request"
	"github.com/catalogix/prodsearch/internal/domain/search/result"
	"github.com/catalogix/prodsearch/internal/index/bm25"
	"github.com/catalogix/prodsearch/internal/metrics"
)

// Method labels reported in responses.
const (
	MethodHybrid   = "hybrid (semantic+metadata+keyword)"
	MethodSemantic = "semantic+metadata only"
)

// Config tunes the retrieval pipeline.
type Config struct {
	// RetrievalSize is the candidate breadth requested from each retrieval
	// method before fusion trims to the final count.
	RetrievalSize int
	// RRFK is the reciprocal rank fusion constant.
	RRFK int
}

// Record is one enriched search result.
type Record struct {
	ProductCode string
	Description string
	BasePrice   float64
	Categories  []string
	Series      string
	Features    []domain.Feature
	Score       float64
}

// Response is the final search contract returned to the transport layer.
type Response struct {
	AnalyzedQuery string
	Filters       filter.Expression
	Method        string
	Results       []Record
}

// Service orchestrates hybrid product search. The keyword index is the only
// cross-request state: it is built lazily from a corpus scan on the first
// hybrid request.
type Service struct {
	analyzer Analyzer
	embedder Embedder
	vectors  VectorStore
	catalog  Catalog
	cfg      Config
	logger   *zap.Logger

	keywordIdx atomic.Pointer[bm25.Index]
	buildGroup singleflight.Group
}

// New creates the search service.
func New(
	analyzer Analyzer,
	embedder Embedder,
	vectors VectorStore,
	catalog Catalog,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.RetrievalSize <= 0 {
		cfg.RetrievalSize = 20
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	return &Service{
		analyzer: analyzer,
		embedder: embedder,
		vectors:  vectors,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
	}
}

// Search executes the pipeline for one request. Analyzer failure degrades to
// an unfiltered search on the raw query; embedder, vector store, and catalog
// failures fail the request.
func (s *Service) Search(ctx context.Context, req request.Request) (Response, error) {
	start := time.Now()
	resp, err := s.search(ctx, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode()), "error").Inc()
		return Response{}, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode()), "success").Inc()
	metrics.SearchDuration.WithLabelValues(string(req.Mode())).Observe(time.Since(start).Seconds())
	return resp, nil
}

func (s *Service) search(ctx context.Context, req request.Request) (Response, error) {
	analysis := s.analyze(ctx, req.Query())
	hybrid := req.Mode() == mode.Hybrid

	semanticLimit := req.TopK()
	if hybrid {
		semanticLimit = s.cfg.RetrievalSize
	}

	var (
		semantic []result.Hit
		keyword  []bm25.Hit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emb, err := s.embedder.Embed(gctx, analysis.CleanQuery)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		semantic, err = s.vectors.Search(gctx, emb.Embedding, analysis.Filters, semanticLimit)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		return nil
	})
	if hybrid {
		g.Go(func() error {
			idx, err := s.ensureKeywordIndex(gctx)
			if err != nil {
				return fmt.Errorf("keyword index: %w", err)
			}
			keyword = idx.Search(analysis.CleanQuery, s.cfg.RetrievalSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Response{}, err
	}

	var picked []result.Hit
	method := MethodSemantic
	if hybrid {
		picked = s.fuse(semantic, keyword, req.TopK())
		method = MethodHybrid
	} else {
		picked = semantic
	}

	records, err := s.enrich(ctx, picked)
	if err != nil {
		return Response{}, err
	}

	s.logger.Info("search completed",
		zap.String("method", method),
		zap.String("analyzed_query", analysis.CleanQuery),
		zap.Int("filter_conditions", len(analysis.Filters.Conditions())),
		zap.Int("results", len(records)))

	return Response{
		AnalyzedQuery: analysis.CleanQuery,
		Filters:       analysis.Filters,
		Method:        method,
		Results:       records,
	}, nil
}

// Health reports store availability and the indexed corpus size.
func (s *Service) Health(ctx context.Context) (uint64, error) {
	return s.vectors.Count(ctx)
}

// InvalidateKeywordIndex drops the lazily built index so the next hybrid
// request rebuilds it from a fresh corpus scan. Called after re-indexing.
func (s *Service) InvalidateKeywordIndex() {
	s.keywordIdx.Store(nil)
}

// analyze degrades to the raw query with no filters when the analyzer fails.
func (s *Service) analyze(ctx context.Context, rawQuery string) domain.QueryAnalysis {
	analysis, err := s.analyzer.Analyze(ctx, rawQuery)
	if err != nil {
		s.logger.Warn("query analysis failed, falling back to raw query", zap.Error(err))
		return domain.QueryAnalysis{CleanQuery: rawQuery}
	}
	return analysis
}

// fuse merges both rankings and resolves fused ids back to their semantic
// payloads. Ids the keyword path found but the vector path never retrieved
// have no payload to display and are dropped; display data is sourced from
// the vector path only.
func (s *Service) fuse(semantic []result.Hit, keyword []bm25.Hit, topK int) []result.Hit {
	semanticIDs := make([]string, len(semantic))
	lookup := make(map[string]result.Hit, len(semantic))
	for i, h := range semantic {
		semanticIDs[i] = h.ID()
		lookup[h.ID()] = h
	}
	keywordIDs := make([]string, len(keyword))
	for i, h := range keyword {
		keywordIDs[i] = h.ID
	}

	fused := fuseRRF([][]string{semanticIDs, keywordIDs}, topK, s.cfg.RRFK)

	picked := make([]result.Hit, 0, len(fused))
	for _, f := range fused {
		h, ok := lookup[f.id]
		if !ok {
			continue
		}
		picked = append(picked, result.NewHit(f.id, f.score, h.Payload()))
	}
	return picked
}

// ensureKeywordIndex builds the index at most once. Concurrent callers share
// a single corpus scan via singleflight; later callers reuse the stored
// index without touching the guard.
func (s *Service) ensureKeywordIndex(ctx context.Context) (*bm25.Index, error) {
	if idx := s.keywordIdx.Load(); idx != nil {
		return idx, nil
	}

	v, err, _ := s.buildGroup.Do("build", func() (any, error) {
		if idx := s.keywordIdx.Load(); idx != nil {
			return idx, nil
		}
		// The scan outcome is shared by every waiting caller, so it must
		// not die with whichever request happened to start it.
		docs, err := s.vectors.Scan(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("scan corpus: %w", err)
		}

		corpus := make([]bm25.Document, len(docs))
		for i, d := range docs {
			corpus[i] = bm25.Document{ID: d.ID, Text: d.Text}
		}
		idx := bm25.New(corpus)
		s.keywordIdx.Store(idx)
		metrics.KeywordIndexBuildsTotal.Inc()
		s.logger.Info("keyword index built", zap.Int("documents", idx.Len()))
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bm25.Index), nil
}

// enrich batch-joins catalog details onto the picked hits, preserving order.
// A hit with no catalog row keeps empty series/features.
func (s *Service) enrich(ctx context.Context, hits []result.Hit) ([]Record, error) {
	if len(hits) == 0 {
		return []Record{}, nil
	}

	codes := make([]string, len(hits))
	for i, h := range hits {
		codes[i] = h.Payload().ProductCode
	}

	details, err := s.catalog.BatchGet(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("enrich results: %w", err)
	}

	records := make([]Record, len(hits))
	for i, h := range hits {
		p := h.Payload()
		d := details[p.ProductCode]
		records[i] = Record{
			ProductCode: p.ProductCode,
			Description: p.Description,
			BasePrice:   p.BasePrice,
			Categories:  p.Categories,
			Series:      d.Series,
			Features:    d.Features,
			Score:       h.Score(),
		}
	}
	return records, nil
}
