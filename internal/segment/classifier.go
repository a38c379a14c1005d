package segment

// Classify maps segment indicators onto the pattern taxonomy. Safety relevant findings
// take priority over variability, which takes priority over time in range.
func Classify(ind Indicators, th Thresholds) Pattern {
	switch {
	case ind.BelowRiskLow >= th.RiskLowFraction && ind.BelowRiskLow > 0,
		ind.AboveRiskHigh >= th.RiskHighFraction && ind.AboveRiskHigh > 0:
		return PatternRiskEvent
	case ind.CV > th.MaxCV:
		return PatternHighVariability
	case ind.InRange < th.MinInRange:
		return PatternLowTargetRatio
	case ind.InRange >= th.OptimalInRange:
		return PatternStableOptimal
	default:
		return PatternStableAcceptable
	}
}
