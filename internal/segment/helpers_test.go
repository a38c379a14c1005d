package segment

import (
	"math"
	"time"
)

var testStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

const cgmInterval = 15 * time.Minute

// spread returns an evenly distributed value in [-1, 1) for sample i
func spread(i int) float64 {
	_, frac := math.Modf(float64(i) * 0.6180339887498949)
	return 2*frac - 1
}

// makeSeries produces n samples every interval starting at testStart
func makeSeries(n int, interval time.Duration, value func(i int, t time.Time) float64) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		ts := testStart.Add(time.Duration(i) * interval)
		samples[i] = Sample{Time: ts, Value: value(i, ts)}
	}
	return samples
}

// stepSeries is level `before` with jitter `jitterBefore` until `at`, then level `after`
// with jitter `jitterAfter`
func stepSeries(days int, at time.Duration, before, jitterBefore, after, jitterAfter float64) []Sample {
	n := days * int(24*time.Hour/cgmInterval)
	return makeSeries(n, cgmInterval, func(i int, ts time.Time) float64 {
		if ts.Sub(testStart) < at {
			return before + jitterBefore*spread(i)
		}
		return after + jitterAfter*spread(i)
	})
}

func constantSeries(days int, v float64) []Sample {
	n := days * int(24*time.Hour/cgmInterval)
	return makeSeries(n, cgmInterval, func(int, time.Time) float64 { return v })
}

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// checkTiling reports a description of the first tiling violation, or "" when the segments
// cover [first, last] contiguously with sequential IDs
func checkTiling(segs []Segment, samples []Sample) string {
	if len(segs) == 0 {
		return "no segments"
	}
	if !segs[0].Start.Equal(samples[0].Time) {
		return "first segment does not start at the first sample"
	}
	if !segs[len(segs)-1].End.Equal(samples[len(samples)-1].Time) {
		return "last segment does not end at the last sample"
	}
	for i, s := range segs {
		if s.ID != i+1 {
			return "segment IDs are not sequential"
		}
		if s.Duration != s.End.Sub(s.Start) {
			return "segment duration does not match its bounds"
		}
		if i > 0 && !segs[i-1].End.Equal(s.Start) {
			return "gap or overlap between segments"
		}
	}
	return ""
}
