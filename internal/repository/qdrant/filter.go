package qdrant

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/catalogix/prodsearch/internal/domain/search/filter"
)

// buildFilter translates a filter expression into the store's native filter.
// All conditions land in the must group, so a hit satisfies every one. An
// empty expression yields nil, which the client treats as no filtering.
func buildFilter(expr filter.Expression) *qdrant.Filter {
	if expr.IsEmpty() {
		return nil
	}

	must := make([]*qdrant.Condition, 0, len(expr.Conditions()))
	for _, c := range expr.Conditions() {
		switch c.Kind() {
		case filter.KindMatch:
			must = append(must, qdrant.NewMatch(c.Key(), c.Match()))
		case filter.KindAnyOf:
			must = append(must, qdrant.NewMatchKeywords(c.Key(), c.AnyOf()...))
		case filter.KindRange:
			r := c.Range()
			must = append(must, qdrant.NewRange(c.Key(), &qdrant.Range{
				Gt:  r.GT(),
				Gte: r.GTE(),
				Lt:  r.LT(),
				Lte: r.LTE(),
			}))
		}
	}
	return &qdrant.Filter{Must: must}
}
