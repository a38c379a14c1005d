package segment

import (
	"fmt"
	"time"
)

// Range is a closed interval of sample values
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies inside the closed interval
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// StatisticalParams configure the mean-shift detector
type StatisticalParams struct {
	Stream        IndicatorName
	ShiftWindows  int     // windows on each side of a split
	Alpha         float64 // significance level for the Welch t-test
	MinEffectSize float64 // minimum absolute difference of means, in value units
}

// ClusteringParams configure the k-means regime detector
type ClusteringParams struct {
	KMin           int
	KMax           int
	MinRun         int // label runs shorter than this are absorbed by their predecessor
	MergeTolerance int // candidates from different k closer than this many windows are merged
	MaxIterations  int
	MinRows        int
}

// GradientParams configure the rate-of-change detector
type GradientParams struct {
	Stream     IndicatorName
	Kernel     int     // median filter kernel, must be odd
	Percentile float64 // percentile of second-order changes used as threshold
	MinChange  float64 // absolute floor for the threshold, in value units
}

// PhaseParams configure the taxonomy phase detector
type PhaseParams struct {
	Windows    int
	TierBounds [3]float64 // in-range fraction bounds separating high/moderate/low/stable tiers
}

// FusionParams configure candidate bucketing and cut selection
type FusionParams struct {
	BucketWidth            time.Duration
	MinAgreement           int // distinct detector kinds needed to make a bucket eligible; event buckets are exempt
	ExternalEventMagnitude float64
}

// Thresholds are the clinical cut-offs used by the pattern classifier
type Thresholds struct {
	RiskLow          float64
	RiskLowFraction  float64
	RiskHigh         float64
	RiskHighFraction float64
	MaxCV            float64
	MinInRange       float64
	OptimalInRange   float64
}

// ImportanceWeights weigh the terms of the segment importance score
type ImportanceWeights struct {
	Duration           float64
	Distinctiveness    float64
	Severity           float64
	DurationSaturation time.Duration
}

// TransitionParams configure transition strength, cause and significance
type TransitionParams struct {
	MeanWeight        float64
	DispersionWeight  float64
	InRangeWeight     float64
	MeanScale         float64
	DispersionScale   float64
	MeanEpsilon       float64
	DispersionEpsilon float64
	InRangeEpsilon    float64
	ModerateStrength  float64
	MajorStrength     float64
}

// EvolutionParams configure the sequence-level evolution labeling
type EvolutionParams struct {
	Alpha              float64
	CyclicalMinExtrema int
	FluctuationRatio   float64
	PhaseDistinctRatio float64
}

// Config holds every tunable of the segmentation engine
type Config struct {
	WindowDuration   time.Duration
	WindowPoints     int // when > 0, windows are sized by sample count instead of duration
	StepFraction     float64
	MinWindowSamples int
	MinWindows       int

	MinSegmentDuration time.Duration
	MaxSegments        int // ceiling for the number of spans produced by fusion
	TargetMin          int
	TargetMax          int

	TargetRange Range

	Statistical StatisticalParams
	Clustering  ClusteringParams
	Gradient    GradientParams
	Phase       PhaseParams
	Fusion      FusionParams
	Thresholds  Thresholds
	Importance  ImportanceWeights
	Transition  TransitionParams
	Evolution   EvolutionParams

	Parallel bool
}

// DefaultConfig returns the defaults tuned for continuous glucose data in mmol/L
func DefaultConfig() Config {
	return Config{
		WindowDuration:   6 * time.Hour,
		StepFraction:     0.5,
		MinWindowSamples: 3,
		MinWindows:       8,

		MinSegmentDuration: 24 * time.Hour,
		MaxSegments:        8,
		TargetMin:          2,
		TargetMax:          4,

		TargetRange: Range{Low: 3.9, High: 10.0},

		Statistical: StatisticalParams{
			Stream:        IndicatorMean,
			ShiftWindows:  4,
			Alpha:         0.01,
			MinEffectSize: 1.0,
		},
		Clustering: ClusteringParams{
			KMin:           2,
			KMax:           4,
			MinRun:         3,
			MergeTolerance: 2,
			MaxIterations:  50,
			MinRows:        12,
		},
		Gradient: GradientParams{
			Stream:     IndicatorMean,
			Kernel:     3,
			Percentile: 95,
			MinChange:  0.5,
		},
		Phase: PhaseParams{
			Windows:    4,
			TierBounds: [3]float64{0.4, 0.6, 0.8},
		},
		Fusion: FusionParams{
			BucketWidth:            6 * time.Hour,
			MinAgreement:           2,
			ExternalEventMagnitude: 1.0,
		},
		Thresholds: Thresholds{
			RiskLow:          3.0,
			RiskLowFraction:  0.01,
			RiskHigh:         13.9,
			RiskHighFraction: 0.25,
			MaxCV:            0.36,
			MinInRange:       0.5,
			OptimalInRange:   0.7,
		},
		Importance: ImportanceWeights{
			Duration:           0.25,
			Distinctiveness:    0.30,
			Severity:           0.45,
			DurationSaturation: 72 * time.Hour,
		},
		Transition: TransitionParams{
			MeanWeight:        0.4,
			DispersionWeight:  0.3,
			InRangeWeight:     0.3,
			MeanScale:         5.0,
			DispersionScale:   2.0,
			MeanEpsilon:       0.5,
			DispersionEpsilon: 0.3,
			InRangeEpsilon:    0.05,
			ModerateStrength:  0.3,
			MajorStrength:     0.6,
		},
		Evolution: EvolutionParams{
			Alpha:              0.05,
			CyclicalMinExtrema: 2,
			FluctuationRatio:   0.6,
			PhaseDistinctRatio: 0.5,
		},
	}
}

// Validate checks every field and returns the first *ConfigurationError found
func (c Config) Validate() error {
	checks := []struct {
		ok     bool
		field  string
		reason string
	}{
		{c.WindowDuration > 0 || c.WindowPoints > 0, "WindowDuration", "either a window duration or a point count is required"},
		{c.WindowPoints >= 0, "WindowPoints", "must not be negative"},
		{c.StepFraction > 0 && c.StepFraction <= 1, "StepFraction", "must be in (0, 1]"},
		{c.MinWindowSamples >= 2, "MinWindowSamples", "must be at least 2"},
		{c.MinWindows >= 2, "MinWindows", "must be at least 2"},
		{c.MinSegmentDuration > 0, "MinSegmentDuration", "must be positive"},
		{c.TargetMin >= 1, "TargetMin", "must be at least 1"},
		{c.TargetMax >= 2, "TargetMax", "must be at least 2"},
		{c.TargetMin <= c.TargetMax, "TargetMin", fmt.Sprintf("%d exceeds TargetMax %d", c.TargetMin, c.TargetMax)},
		{c.MaxSegments >= c.TargetMax, "MaxSegments", fmt.Sprintf("%d is below TargetMax %d", c.MaxSegments, c.TargetMax)},
		{c.TargetRange.Low < c.TargetRange.High, "TargetRange", "low bound must be below high bound"},
		{validStream(c.Statistical.Stream), "Statistical.Stream", fmt.Sprintf("unknown indicator %q", c.Statistical.Stream)},
		{c.Statistical.ShiftWindows >= 2, "Statistical.ShiftWindows", "must be at least 2"},
		{c.Statistical.Alpha > 0 && c.Statistical.Alpha < 1, "Statistical.Alpha", "must be in (0, 1)"},
		{c.Statistical.MinEffectSize > 0, "Statistical.MinEffectSize", "must be positive"},
		{c.Clustering.KMin >= 2, "Clustering.KMin", "must be at least 2"},
		{c.Clustering.KMax >= c.Clustering.KMin, "Clustering.KMax", "must not be below KMin"},
		{c.Clustering.MinRun >= 1, "Clustering.MinRun", "must be at least 1"},
		{c.Clustering.MergeTolerance >= 0, "Clustering.MergeTolerance", "must not be negative"},
		{c.Clustering.MaxIterations >= 1, "Clustering.MaxIterations", "must be at least 1"},
		{c.Clustering.MinRows >= c.Clustering.KMax, "Clustering.MinRows", "must not be below KMax"},
		{validStream(c.Gradient.Stream), "Gradient.Stream", fmt.Sprintf("unknown indicator %q", c.Gradient.Stream)},
		{c.Gradient.Kernel >= 1 && c.Gradient.Kernel%2 == 1, "Gradient.Kernel", "must be a positive odd number"},
		{c.Gradient.Percentile > 0 && c.Gradient.Percentile <= 100, "Gradient.Percentile", "must be in (0, 100]"},
		{c.Gradient.MinChange >= 0, "Gradient.MinChange", "must not be negative"},
		{c.Phase.Windows >= 1, "Phase.Windows", "must be at least 1"},
		{ascending(c.Phase.TierBounds[:]), "Phase.TierBounds", "must be strictly ascending within (0, 1)"},
		{c.Fusion.BucketWidth > 0, "Fusion.BucketWidth", "must be positive"},
		{c.Fusion.MinAgreement >= 1, "Fusion.MinAgreement", "must be at least 1"},
		{c.Fusion.ExternalEventMagnitude >= 0, "Fusion.ExternalEventMagnitude", "must not be negative"},
		{fraction(c.Thresholds.RiskLowFraction), "Thresholds.RiskLowFraction", "must be in [0, 1]"},
		{fraction(c.Thresholds.RiskHighFraction), "Thresholds.RiskHighFraction", "must be in [0, 1]"},
		{c.Thresholds.RiskLow < c.Thresholds.RiskHigh, "Thresholds.RiskLow", "must be below RiskHigh"},
		{c.Thresholds.MaxCV > 0, "Thresholds.MaxCV", "must be positive"},
		{fraction(c.Thresholds.MinInRange), "Thresholds.MinInRange", "must be in [0, 1]"},
		{fraction(c.Thresholds.OptimalInRange) && c.Thresholds.OptimalInRange >= c.Thresholds.MinInRange,
			"Thresholds.OptimalInRange", "must be in [MinInRange, 1]"},
		{c.Importance.Duration >= 0 && c.Importance.Distinctiveness >= 0 && c.Importance.Severity >= 0,
			"Importance", "weights must not be negative"},
		{c.Importance.Duration+c.Importance.Distinctiveness+c.Importance.Severity > 0, "Importance", "at least one weight must be positive"},
		{c.Importance.DurationSaturation > 0, "Importance.DurationSaturation", "must be positive"},
		{c.Transition.MeanWeight >= 0 && c.Transition.DispersionWeight >= 0 && c.Transition.InRangeWeight >= 0,
			"Transition", "weights must not be negative"},
		{c.Transition.MeanScale > 0 && c.Transition.DispersionScale > 0, "Transition", "scales must be positive"},
		{c.Transition.ModerateStrength > 0 && c.Transition.ModerateStrength < c.Transition.MajorStrength && c.Transition.MajorStrength <= 1,
			"Transition.ModerateStrength", "strength bands must satisfy 0 < moderate < major <= 1"},
		{c.Evolution.Alpha > 0 && c.Evolution.Alpha < 1, "Evolution.Alpha", "must be in (0, 1)"},
		{c.Evolution.CyclicalMinExtrema >= 1, "Evolution.CyclicalMinExtrema", "must be at least 1"},
		{fraction(c.Evolution.FluctuationRatio), "Evolution.FluctuationRatio", "must be in [0, 1]"},
		{fraction(c.Evolution.PhaseDistinctRatio), "Evolution.PhaseDistinctRatio", "must be in [0, 1]"},
	}

	for _, check := range checks {
		if !check.ok {
			return &ConfigurationError{Field: check.field, Reason: check.reason}
		}
	}
	return nil
}

func validStream(name IndicatorName) bool {
	switch name {
	case IndicatorMean, IndicatorDispersion, IndicatorInRange, IndicatorSlope:
		return true
	}
	return false
}

func fraction(v float64) bool {
	return v >= 0 && v <= 1
}

func ascending(bounds []float64) bool {
	prev := 0.0
	for _, b := range bounds {
		if b <= prev || b >= 1 {
			return false
		}
		prev = b
	}
	return true
}
