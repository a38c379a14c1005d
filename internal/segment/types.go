package segment

import "time"

// Sample is a single timestamped physiological reading
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// IndicatorWindow holds the features computed over one sliding window of samples
type IndicatorWindow struct {
	Center     time.Time `json:"center"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Mean       float64   `json:"mean"`
	Dispersion float64   `json:"dispersion"`
	InRange    float64   `json:"in_range"`
	Slope      float64   `json:"slope"` // value units per hour
	Count      int       `json:"count"`
}

// IndicatorName selects one feature stream out of the indicator windows
type IndicatorName string

const (
	IndicatorMean       IndicatorName = "mean"
	IndicatorDispersion IndicatorName = "dispersion"
	IndicatorInRange    IndicatorName = "in-range"
	IndicatorSlope      IndicatorName = "slope"
)

// DetectorKind tags the origin of a change point candidate
type DetectorKind string

const (
	KindStatistical DetectorKind = "statistical"
	KindClustering  DetectorKind = "clustering"
	KindGradient    DetectorKind = "gradient"
	KindPhase       DetectorKind = "phase"

	// KindExternal marks caller-supplied event timestamps. It is not a detector.
	KindExternal DetectorKind = "external"
)

// Candidate is a change point proposed by exactly one detector
type Candidate struct {
	Index      int          `json:"index"` // window index of the first window after the change
	Time       time.Time    `json:"time"`
	Kind       DetectorKind `json:"kind"`
	Magnitude  float64      `json:"magnitude"`
	Confidence float64      `json:"confidence"`
}

// FusedChangePoint aggregates the candidates falling into one fusion bucket
type FusedChangePoint struct {
	Time      time.Time
	Score     float64
	Detectors []DetectorKind
	Count     int
}

// Indicators are the aggregate statistics of the raw samples inside a segment
type Indicators struct {
	Mean          float64 `json:"mean"`
	Dispersion    float64 `json:"dispersion"`
	CV            float64 `json:"cv"`
	InRange       float64 `json:"in_range"`
	BelowRiskLow  float64 `json:"below_risk_low"`
	AboveRiskHigh float64 `json:"above_risk_high"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Slope         float64 `json:"slope"`
	Count         int     `json:"count"`
}

// Pattern is the taxonomy label assigned to a segment
type Pattern string

const (
	PatternStableOptimal    Pattern = "stable-optimal"
	PatternStableAcceptable Pattern = "stable-acceptable"
	PatternLowTargetRatio   Pattern = "low-target-ratio"
	PatternHighVariability  Pattern = "high-variability"
	PatternRiskEvent        Pattern = "elevated-risk-event"
)

// Severity ranks a pattern from 0 (best controlled) to 4 (safety relevant)
func (p Pattern) Severity() int {
	switch p {
	case PatternStableOptimal:
		return 0
	case PatternStableAcceptable:
		return 1
	case PatternLowTargetRatio:
		return 2
	case PatternHighVariability:
		return 3
	case PatternRiskEvent:
		return 4
	default:
		return 0
	}
}

const maxSeverity = 4

// Segment is a maximal contiguous time interval carrying one pattern label
type Segment struct {
	ID         int           `json:"id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Duration   time.Duration `json:"duration"`
	Indicators Indicators    `json:"indicators"`
	Pattern    Pattern       `json:"pattern"`
	Stability  float64       `json:"stability"`

	// half-open index range into the analyzed samples
	lo, hi int
}

// Cause is the inferred reason behind a transition
type Cause string

const (
	CauseInterventionEffective    Cause = "intervention-effective"
	CauseLossOfControl            Cause = "loss-of-control"
	CauseExternalStressor         Cause = "possible-external-stressor"
	CauseTreatmentIntensification Cause = "treatment-intensification"
	CauseVariabilityIncrease      Cause = "variability-increase"
	CauseStabilization            Cause = "stabilization"
	CauseUnexplained              Cause = "unexplained"
)

// Significance combines the strength bucket and the direction of a transition
type Significance string

const (
	SignificanceMinorImprovement      Significance = "minor-improvement"
	SignificanceModerateImprovement   Significance = "moderate-improvement"
	SignificanceMajorImprovement      Significance = "major-improvement"
	SignificanceMinorDeterioration    Significance = "minor-deterioration"
	SignificanceModerateDeterioration Significance = "moderate-deterioration"
	SignificanceMajorDeterioration    Significance = "major-deterioration"
)

// Transition describes the change between two adjacent segments with different patterns
type Transition struct {
	FromID       int          `json:"from_id"`
	ToID         int          `json:"to_id"`
	Time         time.Time    `json:"time"`
	Strength     float64      `json:"strength"`
	Cause        Cause        `json:"cause"`
	Significance Significance `json:"significance"`
}

// Evolution summarizes how patterns change across the whole sequence
type Evolution string

const (
	EvolutionStable          Evolution = "stable"
	EvolutionImproving       Evolution = "improving"
	EvolutionDeteriorating   Evolution = "deteriorating"
	EvolutionFluctuating     Evolution = "fluctuating"
	EvolutionPhaseTransition Evolution = "phase-transition"
	EvolutionCyclical        Evolution = "cyclical"
	EvolutionUndetermined    Evolution = "undetermined"
)

// Status tells callers whether the result came from the normal path or the fallback
type Status string

const (
	StatusSegmented     Status = "segmented"
	StatusLowConfidence Status = "low-confidence-single-segment"
)

// Quality is a diagnostic score; it is never used to discard segments
type Quality struct {
	Coverage    float64 `json:"coverage"`
	MinSegment  float64 `json:"min_segment"`
	Consistency float64 `json:"consistency"`
	Score       float64 `json:"score"`
}

// DetectorReport records what one detector contributed to an analysis
type DetectorReport struct {
	Kind       DetectorKind `json:"kind"`
	Candidates int          `json:"candidates"`
	Err        string       `json:"error,omitempty"`
}

// Result is the only object handed to report generators and other collaborators
type Result struct {
	Status           Status           `json:"status"`
	Reason           string           `json:"reason,omitempty"`
	Segments         []Segment        `json:"segments"`
	Transitions      []Transition     `json:"transitions"`
	Evolution        Evolution        `json:"evolution"`
	PatternStability float64          `json:"pattern_stability"`
	Quality          Quality          `json:"quality"`
	Detectors        []DetectorReport `json:"detectors,omitempty"`
	Windows          int              `json:"windows"`
	Samples          int              `json:"samples"`
}

// LowConfidence reports whether the result came from the fallback path
func (r *Result) LowConfidence() bool {
	return r.Status == StatusLowConfidence
}
