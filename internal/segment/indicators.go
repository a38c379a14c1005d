package segment

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ComputeIndicators slides a window over the samples and derives one IndicatorWindow per
// position. Windows holding fewer than cfg.MinWindowSamples samples are dropped.
func ComputeIndicators(samples []Sample, cfg Config) []IndicatorWindow {
	if len(samples) == 0 {
		return nil
	}
	if cfg.WindowPoints > 0 {
		return pointWindows(samples, cfg)
	}
	return durationWindows(samples, cfg)
}

func durationWindows(samples []Sample, cfg Config) []IndicatorWindow {
	width := cfg.WindowDuration
	step := time.Duration(float64(width) * cfg.StepFraction)
	if step <= 0 {
		step = width
	}

	first := samples[0].Time
	last := samples[len(samples)-1].Time

	var windows []IndicatorWindow
	add := func(start time.Time) {
		end := start.Add(width)
		lo := sort.Search(len(samples), func(i int) bool { return !samples[i].Time.Before(start) })
		// windows are half-open except the one ending on the last sample
		hi := len(samples)
		if end.Before(last) {
			hi = sort.Search(len(samples), func(i int) bool { return !samples[i].Time.Before(end) })
		}
		if hi-lo < cfg.MinWindowSamples {
			return
		}
		w := summarizeWindow(samples[lo:hi], start, cfg.TargetRange)
		w.Start = start
		w.End = end
		w.Center = start.Add(width / 2)
		windows = append(windows, w)
	}

	start := first
	for ; !start.Add(width).After(last); start = start.Add(step) {
		add(start)
	}
	// samples past the last full step go into one final window ending on the last sample
	if prev := start.Add(-step); !prev.Before(first) && prev.Add(width).Before(last) {
		add(last.Add(-width))
	}
	return windows
}

func pointWindows(samples []Sample, cfg Config) []IndicatorWindow {
	size := cfg.WindowPoints
	step := int(math.Round(float64(size) * cfg.StepFraction))
	if step < 1 {
		step = 1
	}

	var windows []IndicatorWindow
	add := func(lo int) {
		chunk := samples[lo : lo+size]
		if len(chunk) < cfg.MinWindowSamples {
			return
		}
		start := chunk[0].Time
		end := chunk[len(chunk)-1].Time
		w := summarizeWindow(chunk, start, cfg.TargetRange)
		w.Start = start
		w.End = end
		w.Center = start.Add(end.Sub(start) / 2)
		windows = append(windows, w)
	}

	lo := 0
	for ; lo+size <= len(samples); lo += step {
		add(lo)
	}
	if prev := lo - step; prev >= 0 && prev+size < len(samples) {
		add(len(samples) - size)
	}
	return windows
}

func summarizeWindow(chunk []Sample, origin time.Time, target Range) IndicatorWindow {
	xs, ys := sampleAxes(chunk, origin)
	mean, std := stat.PopMeanStdDev(ys, nil)
	return IndicatorWindow{
		Mean:       mean,
		Dispersion: std,
		InRange:    fractionWhere(ys, target.Contains),
		Slope:      slopePerHour(xs, ys),
		Count:      len(chunk),
	}
}

// aggregate computes segment indicators from the raw samples of the segment
func aggregate(chunk []Sample, cfg Config) Indicators {
	if len(chunk) == 0 {
		return Indicators{}
	}
	xs, ys := sampleAxes(chunk, chunk[0].Time)
	mean, std := stat.PopMeanStdDev(ys, nil)

	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}

	th := cfg.Thresholds
	return Indicators{
		Mean:          mean,
		Dispersion:    std,
		CV:            cv,
		InRange:       fractionWhere(ys, cfg.TargetRange.Contains),
		BelowRiskLow:  fractionWhere(ys, func(v float64) bool { return v < th.RiskLow }),
		AboveRiskHigh: fractionWhere(ys, func(v float64) bool { return v > th.RiskHigh }),
		Min:           floats.Min(ys),
		Max:           floats.Max(ys),
		Slope:         slopePerHour(xs, ys),
		Count:         len(ys),
	}
}

// sampleAxes returns hours since origin and the sample values
func sampleAxes(chunk []Sample, origin time.Time) ([]float64, []float64) {
	xs := make([]float64, len(chunk))
	ys := make([]float64, len(chunk))
	for i, s := range chunk {
		xs[i] = s.Time.Sub(origin).Hours()
		ys[i] = s.Value
	}
	return xs, ys
}

func slopePerHour(xs, ys []float64) float64 {
	if len(xs) < 2 || xs[len(xs)-1] == xs[0] {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

func fractionWhere(ys []float64, pred func(float64) bool) float64 {
	if len(ys) == 0 {
		return 0
	}
	n := 0
	for _, v := range ys {
		if pred(v) {
			n++
		}
	}
	return float64(n) / float64(len(ys))
}
