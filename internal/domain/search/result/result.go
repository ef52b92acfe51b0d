package result

import "github.com/catalogix/prodsearch/internal/domain"

// Hit is a single retrieval hit from one source (vector store or keyword
// index) before fusion.
type Hit struct {
	id      string
	score   float64
	payload domain.Payload
}

// NewHit creates a retrieval hit.
func NewHit(id string, score float64, payload domain.Payload) Hit {
	return Hit{id: id, score: score, payload: payload}
}

// ID returns the product code the hit refers to.
func (h *Hit) ID() string { return h.id }

// Score returns the source-specific relevance score.
func (h *Hit) Score() float64 { return h.score }

// Payload returns the stored metadata.
func (h *Hit) Payload() domain.Payload { return h.payload }
