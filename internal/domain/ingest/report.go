package ingest

// ItemStatus is the processing outcome of a single product during indexing.
type ItemStatus string

// Indexing item status values.
const (
	StatusIndexed ItemStatus = "indexed"
	StatusFailed  ItemStatus = "failed"
)

// Item is the outcome of indexing one product.
type Item struct {
	code   string
	status ItemStatus
	err    error
}

// NewIndexed creates a successful indexing outcome.
func NewIndexed(code string) Item { return Item{code: code, status: StatusIndexed} }

// NewFailed creates a failed indexing outcome.
func NewFailed(code string, err error) Item { return Item{code: code, status: StatusFailed, err: err} }

// Code returns the product code.
func (i Item) Code() string { return i.code }

// Status returns the processing outcome.
func (i Item) Status() ItemStatus { return i.status }

// Err returns the error, if any.
func (i Item) Err() error { return i.err }

// Report summarizes a full corpus indexing run.
type Report struct {
	Items []Item
}

// Indexed returns the number of successfully indexed products.
func (r Report) Indexed() int {
	n := 0
	for _, it := range r.Items {
		if it.Status() == StatusIndexed {
			n++
		}
	}
	return n
}

// Failed returns the number of products that failed to index.
func (r Report) Failed() int { return len(r.Items) - r.Indexed() }
