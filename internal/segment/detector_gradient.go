package segment

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// GradientDetector looks for abrupt changes in the rate of change of a smoothed stream
type GradientDetector struct {
	params GradientParams
}

func (d *GradientDetector) Kind() DetectorKind {
	return KindGradient
}

func (d *GradientDetector) Detect(streams *Streams) ([]Candidate, error) {
	x := streams.Stream(d.params.Stream)
	if len(x) < d.params.Kernel+2 || len(x) < 3 {
		return nil, &DetectorFailure{
			Kind:   KindGradient,
			Reason: fmt.Sprintf("need at least %d windows, have %d", d.params.Kernel+2, len(x)),
		}
	}

	smoothed := MedFilt(x, d.params.Kernel)
	gradient := make([]float64, len(smoothed)-1)
	for i := range gradient {
		gradient[i] = smoothed[i+1] - smoothed[i]
	}

	// change[i] is the bend of the smoothed curve at window i
	change := make([]float64, len(x))
	for i := 1; i < len(gradient); i++ {
		change[i] = math.Abs(gradient[i] - gradient[i-1])
	}

	threshold, err := stats.Percentile(stats.Float64Data(change[1:len(gradient)]), d.params.Percentile)
	if err != nil {
		return nil, &DetectorFailure{Kind: KindGradient, Reason: fmt.Sprintf("percentile: %v", err)}
	}
	threshold = math.Max(threshold, d.params.MinChange)
	if threshold <= 0 {
		return nil, nil
	}

	scores := make([]float64, len(change))
	for i, c := range change {
		if c >= threshold {
			scores[i] = c / threshold
		}
	}

	var candidates []Candidate
	for _, i := range runPeaks(scores) {
		candidates = append(candidates, Candidate{
			Index:      i,
			Time:       streams.Center(i),
			Kind:       KindGradient,
			Magnitude:  scores[i],
			Confidence: confidence(scores[i]),
		})
	}
	return candidates, nil
}
