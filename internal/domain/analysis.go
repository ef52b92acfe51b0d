package domain

import "github.com/catalogix/prodsearch/internal/domain/search/filter"

// QueryAnalysis is the analyzer's reading of a raw user query: the cleaned
// text to retrieve with and the structured constraints it extracted.
type QueryAnalysis struct {
	CleanQuery string
	Filters    filter.Expression
}
