package segment

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Analyzer runs the segmentation pipeline. It holds only configuration, so one Analyzer
// may serve concurrent calls.
type Analyzer struct {
	cfg      Config
	logger   *zap.SugaredLogger
	ensemble *Ensemble
}

// NewAnalyzer validates cfg and returns an Analyzer. A nil logger discards all output.
func NewAnalyzer(cfg Config, logger *zap.SugaredLogger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Analyzer{
		cfg:      cfg,
		logger:   logger,
		ensemble: NewEnsemble(cfg, logger),
	}, nil
}

// Analyze is a convenience wrapper around NewAnalyzer and (*Analyzer).Analyze
func Analyze(ctx context.Context, samples []Sample, events []time.Time, cfg Config, logger *zap.SugaredLogger) (*Result, error) {
	a, err := NewAnalyzer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, samples, events)
}

// Config returns the configuration the Analyzer was built with
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze segments the samples into pattern-labeled periods and describes how the patterns
// evolve. Optional event timestamps are fused as additional change point evidence.
//
// When the series is too short or no detector can run, Analyze returns a single
// low-confidence segment together with an *InsufficientDataError.
func (a *Analyzer) Analyze(ctx context.Context, samples []Sample, events []time.Time) (*Result, error) {
	if err := ValidateSamples(samples); err != nil {
		return nil, err
	}

	first := samples[0].Time
	last := samples[len(samples)-1].Time
	if last.Sub(first) < 2*a.cfg.MinSegmentDuration {
		return a.fallback(samples, nil, nil,
			fmt.Sprintf("series spans %v, need at least %v", last.Sub(first), 2*a.cfg.MinSegmentDuration))
	}

	windows := ComputeIndicators(samples, a.cfg)
	if len(windows) < a.cfg.MinWindows {
		return a.fallback(samples, windows, nil,
			fmt.Sprintf("only %d indicator windows, need at least %d", len(windows), a.cfg.MinWindows))
	}

	candidates, reports, err := a.ensemble.Run(ctx, NewStreams(windows))
	if err != nil {
		return nil, fmt.Errorf("error running detectors: %w", err)
	}
	if allFailed(reports) {
		return a.fallback(samples, windows, reports, "every detector failed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segs := a.build(samples, candidates, events)
	segs = Optimize(samples, segs, a.cfg)
	segs = coalesce(samples, segs, a.cfg)
	renumber(segs)
	assignStability(segs, windows)

	res := &Result{
		Status:           StatusSegmented,
		Segments:         segs,
		Transitions:      AnalyzeTransitions(segs, a.cfg.Transition),
		Evolution:        ClassifyEvolution(segs, a.cfg.Evolution),
		PatternStability: PatternStability(segs),
		Quality:          ScoreQuality(segs, last.Sub(first), a.cfg.MinSegmentDuration),
		Detectors:        reports,
		Windows:          len(windows),
		Samples:          len(samples),
	}
	a.logger.Infof("segmented %d samples into %d segments (%s, quality %.2f)",
		len(samples), len(segs), res.Evolution, res.Quality.Score)
	return res, nil
}

// build fuses the detector candidates with the event candidates and cuts the series at the
// selected change points
func (a *Analyzer) build(samples []Sample, candidates []Candidate, events []time.Time) []Segment {
	first := samples[0].Time
	last := samples[len(samples)-1].Time

	candidates = append(candidates, eventCandidates(events, first, last, a.cfg.Fusion.ExternalEventMagnitude)...)
	fused := Fuse(candidates, first, a.cfg.Fusion)
	cuts := SelectCuts(fused, a.cfg.MaxSegments-1, a.cfg.MinSegmentDuration)
	a.logger.Debugf("fused %d candidates into %d eligible buckets, selected %d cuts", len(candidates), len(fused), len(cuts))

	return BuildSegments(samples, cuts, a.cfg)
}

// fallback describes the whole series as one low-confidence segment
func (a *Analyzer) fallback(samples []Sample, windows []IndicatorWindow, reports []DetectorReport, reason string) (*Result, error) {
	first := samples[0].Time
	last := samples[len(samples)-1].Time

	segs := []Segment{makeSegment(samples, 0, len(samples), first, last, a.cfg)}
	renumber(segs)
	segs[0].Stability = 1
	if len(windows) > 0 {
		assignStability(segs, windows)
	}

	a.logger.Warnf("falling back to a single segment: %s", reason)
	res := &Result{
		Status:           StatusLowConfidence,
		Reason:           reason,
		Segments:         segs,
		Transitions:      []Transition{},
		Evolution:        EvolutionUndetermined,
		PatternStability: 1,
		Quality:          ScoreQuality(segs, last.Sub(first), a.cfg.MinSegmentDuration),
		Detectors:        reports,
		Windows:          len(windows),
		Samples:          len(samples),
	}
	return res, &InsufficientDataError{Reason: reason}
}

// ValidateSamples enforces strictly increasing timestamps and finite values
func ValidateSamples(samples []Sample) error {
	if len(samples) == 0 {
		return &DataContractError{Index: -1, Reason: "no samples"}
	}
	for i, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return &DataContractError{Index: i, Reason: "value is not finite"}
		}
		if i == 0 {
			continue
		}
		prev := samples[i-1].Time
		switch {
		case s.Time.Equal(prev):
			return &DataContractError{Index: i, Reason: fmt.Sprintf("duplicate timestamp %s", s.Time.Format(time.RFC3339))}
		case s.Time.Before(prev):
			return &DataContractError{Index: i, Reason: fmt.Sprintf("timestamp %s precedes %s", s.Time.Format(time.RFC3339), prev.Format(time.RFC3339))}
		}
	}
	return nil
}
