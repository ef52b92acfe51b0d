package chi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/catalogix/prodsearch/internal/domain"
	domingest "github.com/catalogix/prodsearch/internal/domain/ingest"
	"github.com/catalogix/prodsearch/internal/domain/search/filter"
	"github.com/catalogix/prodsearch/internal/domain/search/mode"
	"github.com/catalogix/prodsearch/internal/domain/search/request"
	healthuc "github.com/catalogix/prodsearch/internal/usecase/health"
	ingestuc "github.com/catalogix/prodsearch/internal/usecase/ingest"
	searchuc "github.com/catalogix/prodsearch/internal/usecase/search"
)

// errorCode identifies an error class in API responses.
type errorCode string

// API error codes.
const (
	codeBadRequest             errorCode = "bad_request"
	codeValidationFailed       errorCode = "validation_failed"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeVectorStoreError       errorCode = "vector_store_error"
	codeCatalogUnavailable     errorCode = "catalog_unavailable"
	codeInternalError          errorCode = "internal_error"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search, indexing, and health use cases over HTTP.
type Server struct {
	search        *searchuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		ingest: ingest,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrVectorStoreError, http.StatusServiceUnavailable, codeVectorStoreError),
		sentinelHandler(domain.ErrCatalogUnavailable, http.StatusServiceUnavailable, codeCatalogUnavailable),
	}
	return s
}

// Routes mounts the API handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/search", s.searchDocuments)
	r.Post("/api/v1/index/rebuild", s.rebuildIndex)
	r.Get("/api/v1/health", s.healthCheck)
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", s.metrics)
}

// searchRequest is the POST /api/v1/search body.
type searchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

// searchResultItem is one enriched hit in the search response.
type searchResultItem struct {
	ProductCode string           `json:"product_code"`
	Description string           `json:"description"`
	BasePrice   float64          `json:"base_price"`
	Categories  []string         `json:"categories"`
	Series      string           `json:"series,omitempty"`
	Features    []domain.Feature `json:"features,omitempty"`
	Score       float64          `json:"score"`
}

type searchResponse struct {
	Query           string             `json:"query"`
	AnalyzedQuery   string             `json:"analyzed_query"`
	FiltersDetected []filterCondition  `json:"filters_detected"`
	SearchMethod    string             `json:"search_method"`
	Results         []searchResultItem `json:"results"`
	TotalResults    int                `json:"total_results"`
}

// filterCondition is the wire form of one detected filter clause.
type filterCondition struct {
	Key   string       `json:"key"`
	Match string       `json:"match,omitempty"`
	AnyOf []string     `json:"any_of,omitempty"`
	Range *rangeFilter `json:"range,omitempty"`
}

type rangeFilter struct {
	GT  *float64 `json:"gt,omitempty"`
	GTE *float64 `json:"gte,omitempty"`
	LT  *float64 `json:"lt,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// searchDocuments handles POST /api/v1/search.
func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	searchReq, err := request.New(req.Query, mode.Mode(req.Mode), req.TopK)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), searchReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(resp.Results))
	for i, rec := range resp.Results {
		items[i] = searchResultItem{
			ProductCode: rec.ProductCode,
			Description: rec.Description,
			BasePrice:   rec.BasePrice,
			Categories:  rec.Categories,
			Series:      rec.Series,
			Features:    rec.Features,
			Score:       roundScore(rec.Score),
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:           searchReq.Query(),
		AnalyzedQuery:   resp.AnalyzedQuery,
		FiltersDetected: filtersToWire(resp.Filters),
		SearchMethod:    resp.Method,
		Results:         items,
		TotalResults:    len(items),
	})
}

// reindexResponse is the POST /api/v1/index/rebuild body.
type reindexResponse struct {
	Indexed  int             `json:"indexed"`
	Failed   int             `json:"failed"`
	Total    int             `json:"total"`
	Failures []reindexFailed `json:"failures,omitempty"`
}

type reindexFailed struct {
	ProductCode string `json:"product_code"`
	Error       string `json:"error"`
}

// rebuildIndex handles POST /api/v1/index/rebuild.
func (s *Server) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingest.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := reindexResponse{
		Indexed: report.Indexed(),
		Failed:  report.Failed(),
		Total:   len(report.Items),
	}
	for _, item := range report.Items {
		if item.Status() != domingest.StatusFailed {
			continue
		}
		resp.Failures = append(resp.Failures, reindexFailed{
			ProductCode: item.Code(),
			Error:       safeDomainMessage(item.Err()),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status       string            `json:"status"`
	Checks       map[string]string `json:"checks"`
	IndexedCount uint64            `json:"indexed_count"`
}

// healthCheck handles GET /api/v1/health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:       string(report.Status),
		Checks:       checks,
		IndexedCount: report.IndexedCount,
	})
}

// metrics handles GET /metrics.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func filtersToWire(expr filter.Expression) []filterCondition {
	conds := expr.Conditions()
	out := make([]filterCondition, len(conds))
	for i, c := range conds {
		fc := filterCondition{Key: c.Key()}
		switch c.Kind() {
		case filter.KindMatch:
			fc.Match = c.Match()
		case filter.KindAnyOf:
			fc.AnyOf = c.AnyOf()
		case filter.KindRange:
			r := c.Range()
			fc.Range = &rangeFilter{GT: r.GT(), GTE: r.GTE(), LT: r.LT(), LTE: r.LTE()}
		}
		out[i] = fc
	}
	return out
}

// roundScore truncates fused scores to four decimals for display.
func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrEmbeddingProviderError,
		domain.ErrAnalyzerUnavailable,
		domain.ErrVectorStoreError,
		domain.ErrCatalogUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
