package request

import (
	"fmt"
	"strings"

	"github.com/catalogix/prodsearch/internal/domain"
	"github.com/catalogix/prodsearch/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 1024
	DefaultTopK    = 5
	MaxTopK        = 50
)

// Request is a validated search query.
type Request struct {
	query      string
	searchMode mode.Mode
	topK       int
}

// New validates and normalizes search parameters.
// Defaults: mode=hybrid, topK=5. TopK is clamped to MaxTopK.
func New(query string, m mode.Mode, topK int) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidRequest)
	}
	if m == "" {
		m = mode.Default
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode %q: %w", m, domain.ErrInvalidRequest)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	return Request{query: query, searchMode: m, topK: topK}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the retrieval strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// TopK returns the maximum results to return.
func (r *Request) TopK() int { return r.topK }
