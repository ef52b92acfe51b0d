package search

import "sort"

// DefaultRRFK is the Reciprocal Rank Fusion constant (standard value from
// Cormack et al. 2009).
const DefaultRRFK = 60

// fusedHit is a document reference with its accumulated reciprocal-rank score.
type fusedHit struct {
	id    string
	score float64
}

// fuseRRF merges ranked id lists via Reciprocal Rank Fusion:
// score(d) = sum of 1/(kConst + rank_i(d)) over each list where d appears,
// ranks 1-indexed. Returns the topK highest-scoring ids. Equal scores keep
// first-seen order across the input lists, so identical inputs always fuse
// to identical output.
func fuseRRF(lists [][]string, topK, kConst int) []fusedHit {
	if kConst <= 0 {
		kConst = DefaultRRFK
	}

	scores := make(map[string]float64)
	var order []string

	for _, list := range lists {
		for i, id := range list {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id] += 1.0 / float64(kConst+i+1)
		}
	}

	fused := make([]fusedHit, 0, len(order))
	for _, id := range order {
		fused = append(fused, fusedHit{id: id, score: scores[id]})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].score > fused[j].score
	})

	if topK >= 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
