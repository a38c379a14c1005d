package segment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// StatisticalDetector flags splits where the windows before and after differ in mean by a
// statistically significant and clinically relevant amount
type StatisticalDetector struct {
	params StatisticalParams
}

func (d *StatisticalDetector) Kind() DetectorKind {
	return KindStatistical
}

func (d *StatisticalDetector) Detect(streams *Streams) ([]Candidate, error) {
	span := d.params.ShiftWindows
	x := streams.Stream(d.params.Stream)
	if len(x) < 2*span {
		return nil, &DetectorFailure{
			Kind:   KindStatistical,
			Reason: fmt.Sprintf("need at least %d windows, have %d", 2*span, len(x)),
		}
	}
	if stat.Variance(x, nil) == 0 {
		return nil, &DetectorFailure{Kind: KindStatistical, Reason: fmt.Sprintf("zero variance in %s stream", d.params.Stream)}
	}

	scores := make([]float64, len(x))
	pvalues := make([]float64, len(x))
	for i := span; i+span <= len(x); i++ {
		delta, p := welchTest(x[i-span:i], x[i:i+span])
		if p < d.params.Alpha && math.Abs(delta) >= d.params.MinEffectSize {
			scores[i] = math.Abs(delta) / d.params.MinEffectSize
			pvalues[i] = p
		}
	}

	var candidates []Candidate
	for _, i := range runPeaks(scores) {
		candidates = append(candidates, Candidate{
			Index:      i,
			Time:       streams.Boundary(i),
			Kind:       KindStatistical,
			Magnitude:  scores[i],
			Confidence: 1 - pvalues[i],
		})
	}
	return candidates, nil
}

// welchTest returns mean(after)-mean(before) and the two-sided p-value of Welch's t-test.
// Two constant samples with different means are treated as a certain difference.
func welchTest(before, after []float64) (float64, float64) {
	m1, v1 := stat.MeanVariance(before, nil)
	m2, v2 := stat.MeanVariance(after, nil)
	delta := m2 - m1

	n1 := float64(len(before))
	n2 := float64(len(after))
	s1 := v1 / n1
	s2 := v2 / n2
	se2 := s1 + s2

	if se2 == 0 {
		if delta == 0 {
			return 0, 1
		}
		return delta, 0
	}

	t := delta / math.Sqrt(se2)
	df := se2 * se2 / (s1*s1/(n1-1) + s2*s2/(n2-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return delta, 2 * (1 - dist.CDF(math.Abs(t)))
}
