package domain

// Payload is the metadata stored alongside a point in the vector store and
// returned with every hit. Numerics and Units hold dimension fields flattened
// to "<name>_value" and "<name>_unit" keys on the wire.
type Payload struct {
	ProductCode string
	Description string
	BasePrice   float64
	Categories  []string
	Numerics    map[string]float64
	Units       map[string]string
	Series      string
}

// Document is an indexable unit: the flattened text fed to the embedder and
// the keyword index, plus the payload persisted with the vector.
type Document struct {
	ID      string
	Text    string
	Payload Payload
}
