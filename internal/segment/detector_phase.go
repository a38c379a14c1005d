package segment

import (
	"fmt"
	"math"
)

// severity tiers assigned to each window by the phase detector
const (
	tierStable = iota
	tierLow
	tierModerate
	tierHigh
	tierCount
)

// PhaseDetector tracks the in-range severity tier of every window and reports where the
// dominant tier changes
type PhaseDetector struct {
	params PhaseParams
}

func (d *PhaseDetector) Kind() DetectorKind {
	return KindPhase
}

func (d *PhaseDetector) Detect(streams *Streams) ([]Candidate, error) {
	span := d.params.Windows
	if streams.Len() < 2*span {
		return nil, &DetectorFailure{
			Kind:   KindPhase,
			Reason: fmt.Sprintf("need at least %d windows, have %d", 2*span, streams.Len()),
		}
	}

	tiers := make([]int, streams.Len())
	for i, v := range streams.InRange() {
		tiers[i] = d.tier(v)
	}

	scores := make([]float64, len(tiers))
	for i := span; i+span <= len(tiers); i++ {
		before := majorityTier(tiers[i-span : i])
		after := majorityTier(tiers[i : i+span])
		if before != after {
			scores[i] = math.Abs(float64(after - before))
		}
	}

	var candidates []Candidate
	for _, i := range runPeaks(scores) {
		candidates = append(candidates, Candidate{
			Index:      i,
			Time:       streams.Boundary(i),
			Kind:       KindPhase,
			Magnitude:  scores[i],
			Confidence: scores[i] / float64(tierCount-1),
		})
	}
	return candidates, nil
}

func (d *PhaseDetector) tier(inRange float64) int {
	b := d.params.TierBounds
	switch {
	case inRange < b[0]:
		return tierHigh
	case inRange < b[1]:
		return tierModerate
	case inRange < b[2]:
		return tierLow
	default:
		return tierStable
	}
}

// majorityTier returns the most frequent tier; ties go to the more severe tier
func majorityTier(tiers []int) int {
	var counts [tierCount]int
	for _, t := range tiers {
		counts[t]++
	}
	best := tierStable
	for t := tierStable; t < tierCount; t++ {
		if counts[t] >= counts[best] {
			best = t
		}
	}
	return best
}
