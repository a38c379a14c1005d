package segment

import (
	"math"
	"sort"
)

// Importance scores interior segment i against its neighbours. Longer, more distinct and
// more severe segments score higher.
func Importance(segs []Segment, i int, w ImportanceWeights) float64 {
	duration := math.Min(1, float64(segs[i].Duration)/float64(w.DurationSaturation))

	distinct := 0.0
	neighbours := 0
	for _, j := range []int{i - 1, i + 1} {
		if j < 0 || j >= len(segs) {
			continue
		}
		distinct += distinctiveness(segs[i], segs[j])
		neighbours++
	}
	if neighbours > 0 {
		distinct /= float64(neighbours)
	}

	severity := float64(segs[i].Pattern.Severity()) / maxSeverity
	return w.Duration*duration + w.Distinctiveness*distinct + w.Severity*severity
}

// distinctiveness is a [0, 1] distance between two segments built from their severity
// ranks and their time in range
func distinctiveness(a, b Segment) float64 {
	label := math.Abs(float64(a.Pattern.Severity()-b.Pattern.Severity())) / maxSeverity
	inRange := math.Abs(a.Indicators.InRange - b.Indicators.InRange)
	return 0.5*label + 0.5*inRange
}

// Optimize reduces the segment count to at most cfg.TargetMax. The first and last segments
// always survive; of the interior ones the TargetMax-2 most important are kept. Every other
// segment joins its nearer kept neighbour and merged segments are re-aggregated from samples.
func Optimize(samples []Sample, segs []Segment, cfg Config) []Segment {
	n := len(segs)
	if n <= cfg.TargetMax {
		return segs
	}

	interior := make([]int, 0, n-2)
	scores := make([]float64, n)
	for i := 1; i < n-1; i++ {
		interior = append(interior, i)
		scores[i] = Importance(segs, i, cfg.Importance)
	}
	sort.SliceStable(interior, func(a, b int) bool {
		return scores[interior[a]] > scores[interior[b]]
	})

	keep := make([]bool, n)
	keep[0] = true
	keep[n-1] = true
	for _, i := range interior[:cfg.TargetMax-2] {
		keep[i] = true
	}

	owner := make([]int, n)
	for i := range segs {
		if keep[i] {
			owner[i] = i
			continue
		}
		left := i - 1
		for !keep[left] {
			left--
		}
		right := i + 1
		for !keep[right] {
			right++
		}
		mid := segs[i].Start.Add(segs[i].Duration / 2)
		if mid.Sub(segs[left].End) <= segs[right].Start.Sub(mid) {
			owner[i] = left
		} else {
			owner[i] = right
		}
	}

	out := make([]Segment, 0, cfg.TargetMax)
	for i := 0; i < n; {
		j := i + 1
		for j < n && owner[j] == owner[i] {
			j++
		}
		out = append(out, mergeRange(samples, segs, i, j, cfg))
		i = j
	}
	return out
}
