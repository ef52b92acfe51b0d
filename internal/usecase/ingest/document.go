package ingest

import (
	"fmt"
	"strings"

	"github.com/catalogix/prodsearch/internal/domain"
)

// Stored field truncation limits.
const (
	maxPayloadDescription = 500
	maxPayloadSeries      = 100
)

// dimensionOrder fixes the order dimensions appear in the embed text.
var dimensionOrder = []string{"height", "width", "depth", "weight", "volume"}

// buildDocument flattens a product into the text fed to the embedder and
// the keyword index, plus the payload stored with the vector. Feature codes
// are internal identifiers and stay out of the text; only descriptions help
// search.
func buildDocument(p domain.Product) domain.Document {
	var parts []string

	if p.Code != "" {
		parts = append(parts, "Product Code: "+p.Code)
	}
	if p.BasePrice > 0 {
		parts = append(parts, fmt.Sprintf("Price: $%.2f", p.BasePrice))
	}
	if len(p.Categories) > 0 {
		parts = append(parts, "Categories: "+strings.Join(p.Categories, ", "))
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	if dims := dimensionText(p.Dimensions); dims != "" {
		parts = append(parts, "Dimensions: "+dims)
	}
	if feats := featureText(p.Features); feats != "" {
		parts = append(parts, "Features: "+feats)
	}
	if p.Series != "" {
		parts = append(parts, "Series: "+p.Series)
	}

	return domain.Document{
		ID:      p.Code,
		Text:    strings.Join(parts, " | "),
		Payload: buildPayload(p),
	}
}

func dimensionText(dims map[string]domain.Dimension) string {
	var parts []string
	for _, name := range dimensionOrder {
		d, ok := dims[name]
		if !ok || d.Value == 0 {
			continue
		}
		part := fmt.Sprintf("%s: %v", name, d.Value)
		if d.Unit != "" {
			part += " " + d.Unit
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func featureText(features []domain.Feature) string {
	var descs []string
	for _, f := range features {
		if f.Description != "" {
			descs = append(descs, f.Description)
		}
	}
	return strings.Join(descs, "; ")
}

// buildPayload extracts the filterable metadata stored alongside the vector.
// Long text fields are truncated; the full text lives in the document field.
func buildPayload(p domain.Product) domain.Payload {
	payload := domain.Payload{
		ProductCode: p.Code,
		Description: truncate(p.Description, maxPayloadDescription),
		BasePrice:   p.BasePrice,
		Categories:  p.Categories,
		Series:      truncate(p.Series, maxPayloadSeries),
	}
	for name, d := range p.Dimensions {
		if payload.Numerics == nil {
			payload.Numerics = make(map[string]float64, len(p.Dimensions))
			payload.Units = make(map[string]string, len(p.Dimensions))
		}
		payload.Numerics[name] = d.Value
		payload.Units[name] = d.Unit
	}
	return payload
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
