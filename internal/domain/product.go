package domain

// Product is a full catalog row, read from the relational store during
// corpus (re)indexing.
type Product struct {
	Code        string
	Description string
	BasePrice   float64
	Categories  []string
	Dimensions  map[string]Dimension // keyed height/width/depth/weight/volume
	Series      string
	Features    []Feature
}

// Dimension is a measured product attribute with its unit.
type Dimension struct {
	Value float64
	Unit  string
}

// Feature is a coded product feature with its catalog description.
type Feature struct {
	Code        string `json:"feature_code,omitempty"`
	Description string `json:"feature_description,omitempty"`
}

// ProductDetails carries the relational fields joined onto search results:
// they are not stored in the vector payload.
type ProductDetails struct {
	Series   string
	Features []Feature
}
