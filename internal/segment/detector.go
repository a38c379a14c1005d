package segment

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Detector proposes change point candidates from the indicator streams
type Detector interface {
	Kind() DetectorKind
	Detect(streams *Streams) ([]Candidate, error)
}

// Streams is a read-only view over the indicator windows. Every accessor returns a copy.
type Streams struct {
	windows []IndicatorWindow
}

// NewStreams wraps the windows produced by ComputeIndicators
func NewStreams(windows []IndicatorWindow) *Streams {
	return &Streams{windows: windows}
}

// Len returns the number of windows
func (s *Streams) Len() int {
	return len(s.windows)
}

func (s *Streams) Mean() []float64       { return s.Stream(IndicatorMean) }
func (s *Streams) Dispersion() []float64 { return s.Stream(IndicatorDispersion) }
func (s *Streams) InRange() []float64    { return s.Stream(IndicatorInRange) }
func (s *Streams) Slope() []float64      { return s.Stream(IndicatorSlope) }

// Stream returns the named feature for every window
func (s *Streams) Stream(name IndicatorName) []float64 {
	out := make([]float64, len(s.windows))
	for i, w := range s.windows {
		switch name {
		case IndicatorMean:
			out[i] = w.Mean
		case IndicatorDispersion:
			out[i] = w.Dispersion
		case IndicatorInRange:
			out[i] = w.InRange
		case IndicatorSlope:
			out[i] = w.Slope
		}
	}
	return out
}

// Center returns the center time of window i
func (s *Streams) Center(i int) time.Time {
	return s.windows[i].Center
}

// Boundary returns the time halfway between the centers of windows i-1 and i
func (s *Streams) Boundary(i int) time.Time {
	if i <= 0 {
		return s.windows[0].Center
	}
	prev := s.windows[i-1].Center
	return prev.Add(s.windows[i].Center.Sub(prev) / 2)
}

// Ensemble runs every configured detector over the same streams
type Ensemble struct {
	detectors []Detector
	parallel  bool
	logger    *zap.SugaredLogger
}

// NewEnsemble builds the four detectors from cfg
func NewEnsemble(cfg Config, logger *zap.SugaredLogger) *Ensemble {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Ensemble{
		detectors: []Detector{
			&StatisticalDetector{params: cfg.Statistical},
			&ClusteringDetector{params: cfg.Clustering},
			&GradientDetector{params: cfg.Gradient},
			&PhaseDetector{params: cfg.Phase},
		},
		parallel: cfg.Parallel,
		logger:   logger,
	}
}

type detectorOutcome struct {
	candidates []Candidate
	err        error
}

// Run executes the detectors and returns their candidates in detector order together with
// one report per detector. A failing detector is logged and contributes nothing.
// Cancellation is checked before every detector and aborts the whole run.
func (e *Ensemble) Run(ctx context.Context, streams *Streams) ([]Candidate, []DetectorReport, error) {
	outcomes := make([]detectorOutcome, len(e.detectors))

	if e.parallel {
		var wg sync.WaitGroup
		for i, d := range e.detectors {
			wg.Add(1)
			go func(i int, d Detector) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					outcomes[i].err = err
					return
				}
				outcomes[i] = runDetector(d, streams)
			}(i, d)
		}
		wg.Wait()
	} else {
		for i, d := range e.detectors {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			outcomes[i] = runDetector(d, streams)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var candidates []Candidate
	reports := make([]DetectorReport, len(e.detectors))
	for i, d := range e.detectors {
		out := outcomes[i]
		reports[i] = DetectorReport{Kind: d.Kind(), Candidates: len(out.candidates)}
		if out.err != nil {
			var failure *DetectorFailure
			if !errors.As(out.err, &failure) {
				failure = &DetectorFailure{Kind: d.Kind(), Reason: out.err.Error()}
			}
			reports[i].Err = failure.Reason
			e.logger.Warnf("%v", failure)
			continue
		}
		e.logger.Debugf("%s detector proposed %d candidates", d.Kind(), len(out.candidates))
		candidates = append(candidates, out.candidates...)
	}
	return candidates, reports, nil
}

// runDetector shields the ensemble from a detector panic
func runDetector(d Detector, streams *Streams) (out detectorOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = detectorOutcome{err: &DetectorFailure{Kind: d.Kind(), Reason: "panic during detection"}}
		}
	}()
	candidates, err := d.Detect(streams)
	if err != nil {
		return detectorOutcome{err: err}
	}
	return detectorOutcome{candidates: candidates}
}

// allFailed reports whether every detector returned an error
func allFailed(reports []DetectorReport) bool {
	if len(reports) == 0 {
		return true
	}
	for _, r := range reports {
		if r.Err == "" {
			return false
		}
	}
	return true
}

// runPeaks reduces each run of consecutive positive scores to the index of its strongest
// member. When several members tie, the middle one of them wins (the later one of an
// even count).
func runPeaks(scores []float64) []int {
	var peaks []int
	for i := 0; i < len(scores); {
		if scores[i] <= 0 {
			i++
			continue
		}
		j := i
		best := scores[i]
		for j < len(scores) && scores[j] > 0 {
			if scores[j] > best {
				best = scores[j]
			}
			j++
		}
		var tied []int
		for k := i; k < j; k++ {
			if scores[k] == best {
				tied = append(tied, k)
			}
		}
		peaks = append(peaks, tied[len(tied)/2])
		i = j
	}
	return peaks
}

// confidence maps a magnitude expressed in threshold units onto [0, 1)
func confidence(magnitude float64) float64 {
	if magnitude <= 0 {
		return 0
	}
	return magnitude / (1 + magnitude)
}
