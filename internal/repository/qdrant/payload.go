package qdrant

import (
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/catalogix/prodsearch/internal/domain"
)

// Payload field names. Dimension fields are flattened to
// "<name>_value"/"<name>_unit" pairs.
const (
	fieldDocument    = "document"
	fieldProductCode = "product_code"
	fieldDescription = "description"
	fieldBasePrice   = "base_price"
	fieldCategories  = "categories"
	fieldSeries      = "series"

	numericSuffix = "_value"
	unitSuffix    = "_unit"
)

// toPayloadMap flattens a document into the stored payload. The full embed
// text goes under the document key so the keyword index can be rebuilt from
// the store alone.
func toPayloadMap(doc domain.Document) map[string]any {
	p := doc.Payload
	m := map[string]any{
		fieldDocument:    doc.Text,
		fieldProductCode: p.ProductCode,
		fieldDescription: p.Description,
		fieldBasePrice:   p.BasePrice,
	}
	if len(p.Categories) > 0 {
		cats := make([]any, len(p.Categories))
		for i, c := range p.Categories {
			cats[i] = c
		}
		m[fieldCategories] = cats
	}
	for name, v := range p.Numerics {
		m[name+numericSuffix] = v
	}
	for name, u := range p.Units {
		m[name+unitSuffix] = u
	}
	if p.Series != "" {
		m[fieldSeries] = p.Series
	}
	return m
}

// fromPayloadMap rebuilds the domain payload and embed text from stored
// values. Unknown fields are ignored.
func fromPayloadMap(values map[string]*qdrant.Value) (domain.Payload, string) {
	var p domain.Payload
	var text string

	for k, v := range values {
		switch k {
		case fieldDocument:
			text = v.GetStringValue()
		case fieldProductCode:
			p.ProductCode = v.GetStringValue()
		case fieldDescription:
			p.Description = v.GetStringValue()
		case fieldBasePrice:
			p.BasePrice = numericValue(v)
		case fieldCategories:
			for _, item := range v.GetListValue().GetValues() {
				p.Categories = append(p.Categories, item.GetStringValue())
			}
		case fieldSeries:
			p.Series = v.GetStringValue()
		default:
			if name, ok := strings.CutSuffix(k, numericSuffix); ok {
				if p.Numerics == nil {
					p.Numerics = make(map[string]float64)
				}
				p.Numerics[name] = numericValue(v)
			} else if name, ok := strings.CutSuffix(k, unitSuffix); ok {
				if p.Units == nil {
					p.Units = make(map[string]string)
				}
				p.Units[name] = v.GetStringValue()
			}
		}
	}
	return p, text
}

// numericValue reads a number regardless of whether it was stored as a
// double or an integer.
func numericValue(v *qdrant.Value) float64 {
	if _, ok := v.GetKind().(*qdrant.Value_IntegerValue); ok {
		return float64(v.GetIntegerValue())
	}
	return v.GetDoubleValue()
}
