// Package bm25 implements an in-memory BM25 Okapi index over product text.
package bm25

import (
	"math"
	"sort"
	"strings"
)

// BM25 Okapi parameters.
const (
	defaultK1      = 1.5
	defaultB       = 0.75
	defaultEpsilon = 0.25
)

// Document is one indexable text with a stable identifier.
type Document struct {
	ID   string
	Text string
}

type posting struct {
	doc  int
	freq int
}

// Index is an immutable BM25 Okapi index. Build once, query concurrently.
type Index struct {
	k1, b float64

	ids      []string
	docLens  []int
	avgLen   float64
	postings map[string][]posting
	idf      map[string]float64
}

// New builds an index over the given documents. An empty corpus yields a
// valid index whose searches return no hits.
func New(docs []Document) *Index {
	idx := &Index{
		k1:       defaultK1,
		b:        defaultB,
		postings: make(map[string][]posting),
		idf:      make(map[string]float64),
	}

	totalLen := 0
	for _, d := range docs {
		terms := tokenize(d.Text)
		doc := len(idx.ids)
		idx.ids = append(idx.ids, d.ID)
		idx.docLens = append(idx.docLens, len(terms))
		totalLen += len(terms)

		freqs := make(map[string]int, len(terms))
		for _, t := range terms {
			freqs[t]++
		}
		for t, f := range freqs {
			idx.postings[t] = append(idx.postings[t], posting{doc: doc, freq: f})
		}
	}
	if len(idx.ids) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.ids))
	}
	idx.computeIDF()
	return idx
}

// computeIDF follows BM25 Okapi: terms occurring in more than half the corpus
// get a negative raw IDF, which is floored to epsilon times the average IDF
// so common terms still contribute a small positive weight.
func (idx *Index) computeIDF() {
	n := float64(len(idx.ids))
	if n == 0 {
		return
	}

	sum := 0.0
	var negative []string
	for t, ps := range idx.postings {
		df := float64(len(ps))
		v := math.Log((n - df + 0.5) / (df + 0.5))
		idx.idf[t] = v
		sum += v
		if v < 0 {
			negative = append(negative, t)
		}
	}
	avg := sum / float64(len(idx.postings))
	floor := defaultEpsilon * avg
	for _, t := range negative {
		idx.idf[t] = floor
	}
}

// Hit is a scored document reference.
type Hit struct {
	ID    string
	Score float64
}

// Search scores every document against the query and returns up to k hits in
// descending score order. Documents scoring zero or below are excluded. Ties
// keep corpus insertion order.
func (idx *Index) Search(query string, k int) []Hit {
	if k <= 0 || len(idx.ids) == 0 {
		return nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	scores := make([]float64, len(idx.ids))
	for _, t := range terms {
		w := idx.idf[t]
		for _, p := range idx.postings[t] {
			f := float64(p.freq)
			norm := idx.k1 * (1 - idx.b + idx.b*float64(idx.docLens[p.doc])/idx.avgLen)
			scores[p.doc] += w * (f * (idx.k1 + 1)) / (f + norm)
		}
	}

	hits := make([]Hit, 0, k)
	for doc, s := range scores {
		if s > 0 {
			hits = append(hits, Hit{ID: idx.ids[doc], Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.ids) }

// tokenize lowercases the text, strips everything outside [a-z0-9] and
// whitespace, and splits on whitespace.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
