package merge

import "math"

// OptimalMergeFactor returns the number of runs to merge together per pass
// so that ceil(log_mergeFactor(nruns)) passes are needed overall, balancing
// pass count against per-pass fan-in the way the original optimal merging
// heuristic does: merge_factor = ceil(nruns ^ (1 / ceil(log(nruns)/log(m)))).
func OptimalMergeFactor(nruns, m int) int {
	if nruns <= 1 {
		return nruns
	}
	if m <= 1 {
		return nruns
	}
	levels := math.Ceil(math.Log(float64(nruns)) / math.Log(float64(m)))
	if levels < 1 {
		levels = 1
	}
	factor := math.Ceil(math.Pow(float64(nruns), 1.0/levels))
	if factor < 2 {
		factor = 2
	}
	return int(factor)
}

// divRoundUp computes ceil(a/b) for positive ints.
func divRoundUp(a, b int) int {
	return (a + b - 1) / b
}

// MergeGroups splits nruns sequential run indices into groups of at most
// mergeFactor runs each, the grouping a single cascade pass merges
// together. The final group may be smaller.
func MergeGroups(nruns, mergeFactor int) [][2]int {
	if mergeFactor < 2 {
		mergeFactor = 2
	}
	newN := divRoundUp(nruns, mergeFactor)
	groups := make([][2]int, 0, newN)
	for start := 0; start < nruns; start += mergeFactor {
		end := start + mergeFactor
		if end > nruns {
			end = nruns
		}
		groups = append(groups, [2]int{start, end})
	}
	return groups
}
