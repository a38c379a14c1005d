package segment

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ClassifyEvolution labels the sequence of segments as a whole. Checks run in order:
// a single segment is stable, then a significant monotone trend of time in range, then
// cyclical swings, then fluctuation between revisited patterns, then a sequence of mostly
// distinct phases. Anything else is stable.
func ClassifyEvolution(segs []Segment, p EvolutionParams) Evolution {
	n := len(segs)
	if n <= 1 {
		return EvolutionStable
	}

	inRange := make([]float64, n)
	for i, s := range segs {
		inRange[i] = s.Indicators.InRange
	}

	if n >= 3 {
		if slope, pValue := trendTest(segs, inRange); pValue < p.Alpha && monotone(inRange, slope) {
			if slope > 0 {
				return EvolutionImproving
			}
			return EvolutionDeteriorating
		}
	}

	seen := make(map[Pattern]bool)
	revisited := false
	changes := 0
	for i, s := range segs {
		if i > 0 && segs[i-1].Pattern != s.Pattern {
			changes++
			if seen[s.Pattern] {
				revisited = true
			}
		}
		seen[s.Pattern] = true
	}

	if revisited && extrema(inRange) >= p.CyclicalMinExtrema {
		return EvolutionCyclical
	}
	if revisited && float64(changes)/float64(n-1) >= p.FluctuationRatio {
		return EvolutionFluctuating
	}
	if float64(len(seen))/float64(n) >= p.PhaseDistinctRatio && changes > 0 {
		return EvolutionPhaseTransition
	}
	return EvolutionStable
}

// trendTest regresses time in range on segment midpoints (hours) and returns the slope and
// the two-sided p-value of the slope t statistic
func trendTest(segs []Segment, ys []float64) (float64, float64) {
	origin := segs[0].Start
	xs := make([]float64, len(segs))
	for i, s := range segs {
		xs[i] = s.Start.Add(s.Duration / 2).Sub(origin).Hours()
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	df := float64(len(xs) - 2)
	if df <= 0 || math.IsNaN(beta) {
		return 0, 1
	}

	meanX := stat.Mean(xs, nil)
	sse, sxx := 0.0, 0.0
	for i := range xs {
		r := ys[i] - (alpha + beta*xs[i])
		sse += r * r
		sxx += (xs[i] - meanX) * (xs[i] - meanX)
	}
	if sxx == 0 {
		return 0, 1
	}

	se := math.Sqrt(sse / df / sxx)
	if se == 0 {
		if beta == 0 {
			return 0, 1
		}
		return beta, 0
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return beta, 2 * (1 - dist.CDF(math.Abs(beta/se)))
}

// monotone reports whether every step of ys moves strictly in the direction of slope
func monotone(ys []float64, slope float64) bool {
	if slope == 0 {
		return false
	}
	for i := 1; i < len(ys); i++ {
		d := ys[i] - ys[i-1]
		if d == 0 || (d > 0) != (slope > 0) {
			return false
		}
	}
	return true
}

// extrema counts interior peaks and valleys
func extrema(ys []float64) int {
	n := 0
	for i := 1; i+1 < len(ys); i++ {
		if (ys[i] > ys[i-1] && ys[i] > ys[i+1]) || (ys[i] < ys[i-1] && ys[i] < ys[i+1]) {
			n++
		}
	}
	return n
}

// PatternStability is the share of the total duration covered by the dominant pattern
func PatternStability(segs []Segment) float64 {
	var total time.Duration
	byPattern := make(map[Pattern]time.Duration)
	for _, s := range segs {
		total += s.Duration
		byPattern[s.Pattern] += s.Duration
	}
	if total == 0 {
		if len(segs) == 0 {
			return 0
		}
		return 1
	}

	var dominant time.Duration
	for _, d := range byPattern {
		if d > dominant {
			dominant = d
		}
	}
	return float64(dominant) / float64(total)
}

// assignStability sets each segment's stability to the mean RBF kernel similarity of the
// window means centered inside it
func assignStability(segs []Segment, windows []IndicatorWindow) {
	means := make([]float64, len(windows))
	for i, w := range windows {
		means[i] = w.Mean
	}
	kernel := newRBFKernel(means)

	for i := range segs {
		lo, hi := windowRange(windows, segs[i], i == len(segs)-1)
		segs[i].Stability = kernel.similarity(lo, hi)
	}
}

// windowRange returns the half-open range of windows whose center lies in the segment
func windowRange(windows []IndicatorWindow, s Segment, last bool) (int, int) {
	lo, hi := len(windows), len(windows)
	for i, w := range windows {
		if w.Center.Before(s.Start) {
			continue
		}
		if w.Center.After(s.End) || (!last && w.Center.Equal(s.End)) {
			hi = i
			break
		}
		if lo == len(windows) {
			lo = i
		}
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// ScoreQuality combines coverage, the shortest segment relative to the minimum duration and
// the duration-weighted stability of the segments
func ScoreQuality(segs []Segment, total, minSegment time.Duration) Quality {
	var q Quality
	if len(segs) == 0 {
		return q
	}

	var covered time.Duration
	shortest := segs[0].Duration
	weighted := 0.0
	plain := 0.0
	for _, s := range segs {
		covered += s.Duration
		if s.Duration < shortest {
			shortest = s.Duration
		}
		weighted += s.Stability * float64(s.Duration)
		plain += s.Stability
	}

	q.Coverage = 1
	if total > 0 {
		q.Coverage = float64(covered) / float64(total)
	}
	q.MinSegment = math.Min(1, float64(shortest)/float64(minSegment))
	if covered > 0 {
		q.Consistency = weighted / float64(covered)
	} else {
		q.Consistency = plain / float64(len(segs))
	}
	q.Score = 0.4*q.Coverage + 0.2*q.MinSegment + 0.4*q.Consistency
	return q
}
