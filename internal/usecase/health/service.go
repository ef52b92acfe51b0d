package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results with the indexed corpus size.
type Report struct {
	Status       Status
	Checks       map[string]CheckResult
	IndexedCount uint64
}

// Service coordinates health checks.
type Service struct {
	vectors   VectorStoreChecker
	catalog   CatalogPinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(vectors VectorStoreChecker, catalog CatalogPinger, embedding EmbeddingChecker) *Service {
	return &Service{vectors: vectors, catalog: catalog, embedding: embedding}
}

// Check runs health checks against all components. The indexed count is
// reported as zero when the vector store is unreachable.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var indexed uint64

	if err := s.vectors.Ping(ctx); err != nil {
		checks["vector_store"] = CheckError
	} else {
		checks["vector_store"] = CheckOK
		if n, err := s.vectors.Count(ctx); err == nil {
			indexed = n
		}
	}

	if err := s.catalog.Ping(ctx); err != nil {
		checks["catalog"] = CheckError
	} else {
		checks["catalog"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, IndexedCount: indexed}
}
