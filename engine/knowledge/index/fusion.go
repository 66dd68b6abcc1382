package index

import "sort"

// FuseRRF merges ranked lists with reciprocal-rank fusion: each hit scores
// sum(1 / (k + rank)) over the lists it appears in, rank starting at 1.
// The first occurrence of an ID supplies its text and metadata. Ties are
// broken by ID so the output order is stable for a fixed input.
func FuseRRF(k int, lists ...[]Hit) []Hit {
	if k <= 0 {
		k = DefaultRRFK
	}
	scores := make(map[string]float64)
	first := make(map[string]Hit)
	order := make([]string, 0)
	for _, list := range lists {
		seen := make(map[string]struct{}, len(list))
		for i, hit := range list {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			if _, ok := first[hit.ID]; !ok {
				first[hit.ID] = hit
				order = append(order, hit.ID)
			}
			scores[hit.ID] += 1 / float64(k+i+1)
		}
	}
	fused := make([]Hit, 0, len(order))
	for _, id := range order {
		hit := first[id]
		hit.Score = scores[id]
		fused = append(fused, hit)
	}
	sortHits(fused)
	return fused
}

// sortHits orders hits by score descending, then ID ascending.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Score > hits[j].Score
	})
}

func truncate(hits []Hit, k int) []Hit {
	if k > 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}
