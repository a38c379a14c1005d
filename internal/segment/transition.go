package segment

import "math"

// AnalyzeTransitions describes every boundary between adjacent segments whose patterns differ
func AnalyzeTransitions(segs []Segment, p TransitionParams) []Transition {
	transitions := []Transition{}
	for i := 1; i < len(segs); i++ {
		from, to := segs[i-1], segs[i]
		if from.Pattern == to.Pattern {
			continue
		}
		strength := transitionStrength(from.Indicators, to.Indicators, p)
		transitions = append(transitions, Transition{
			FromID:       from.ID,
			ToID:         to.ID,
			Time:         to.Start,
			Strength:     strength,
			Cause:        inferCause(from.Indicators, to.Indicators, p),
			Significance: significance(from, to, strength, p),
		})
	}
	return transitions
}

func transitionStrength(from, to Indicators, p TransitionParams) float64 {
	s := p.MeanWeight*math.Abs(to.Mean-from.Mean)/p.MeanScale +
		p.DispersionWeight*math.Abs(to.Dispersion-from.Dispersion)/p.DispersionScale +
		p.InRangeWeight*math.Abs(to.InRange-from.InRange)
	return math.Max(0, math.Min(1, s))
}

func inferCause(from, to Indicators, p TransitionParams) Cause {
	dMean := to.Mean - from.Mean
	dDisp := to.Dispersion - from.Dispersion
	dIn := to.InRange - from.InRange
	steadyDisp := math.Abs(dDisp) <= p.DispersionEpsilon

	switch {
	case dIn > p.InRangeEpsilon && dDisp < -p.DispersionEpsilon:
		return CauseInterventionEffective
	case dIn < -p.InRangeEpsilon && dDisp > p.DispersionEpsilon:
		return CauseLossOfControl
	case dMean > p.MeanEpsilon && steadyDisp:
		return CauseExternalStressor
	case dMean < -p.MeanEpsilon && steadyDisp:
		return CauseTreatmentIntensification
	case dDisp > p.DispersionEpsilon:
		return CauseVariabilityIncrease
	case dDisp < -p.DispersionEpsilon:
		return CauseStabilization
	default:
		return CauseUnexplained
	}
}

// significance buckets the strength and decides the direction: time in range first, then
// pattern severity, then dispersion
func significance(from, to Segment, strength float64, p TransitionParams) Significance {
	dIn := to.Indicators.InRange - from.Indicators.InRange
	var improvement bool
	switch {
	case dIn > p.InRangeEpsilon:
		improvement = true
	case dIn < -p.InRangeEpsilon:
		improvement = false
	case to.Pattern.Severity() != from.Pattern.Severity():
		improvement = to.Pattern.Severity() < from.Pattern.Severity()
	default:
		improvement = to.Indicators.Dispersion <= from.Indicators.Dispersion
	}

	switch {
	case strength >= p.MajorStrength && improvement:
		return SignificanceMajorImprovement
	case strength >= p.MajorStrength:
		return SignificanceMajorDeterioration
	case strength >= p.ModerateStrength && improvement:
		return SignificanceModerateImprovement
	case strength >= p.ModerateStrength:
		return SignificanceModerateDeterioration
	case improvement:
		return SignificanceMinorImprovement
	default:
		return SignificanceMinorDeterioration
	}
}
