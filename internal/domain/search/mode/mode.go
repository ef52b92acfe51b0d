package mode

// Mode is the retrieval strategy.
type Mode string

// Search mode constants.
const (
	// Hybrid fuses semantic and keyword retrieval.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
)

// Default is the mode used when a request does not specify one.
const Default = Hybrid

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic
}
