package segment

import (
	"sort"
	"time"
)

// BuildSegments turns sorted cut times into contiguous segments tiling
// [first sample, last sample]. A cut leaving less than MinSegmentDuration (or fewer than
// MinWindowSamples samples) before it is dropped, merging its span into the following one.
// A cut leaving a short final span is dropped as well, merging that span into its predecessor.
func BuildSegments(samples []Sample, cuts []time.Time, cfg Config) []Segment {
	if len(samples) == 0 {
		return nil
	}
	first := samples[0].Time
	last := samples[len(samples)-1].Time
	n := len(samples)

	bounds := []time.Time{first}
	starts := []int{0}
	for _, cut := range cuts {
		prev := bounds[len(bounds)-1]
		lo := sampleIndex(samples, cut)
		if cut.Sub(prev) < cfg.MinSegmentDuration || lo-starts[len(starts)-1] < cfg.MinWindowSamples {
			continue
		}
		if last.Sub(cut) < cfg.MinSegmentDuration || n-lo < cfg.MinWindowSamples {
			continue
		}
		bounds = append(bounds, cut)
		starts = append(starts, lo)
	}
	bounds = append(bounds, last)
	starts = append(starts, n)

	segs := make([]Segment, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		segs = append(segs, makeSegment(samples, starts[i], starts[i+1], bounds[i], bounds[i+1], cfg))
	}
	return segs
}

// sampleIndex returns the index of the first sample at or after t
func sampleIndex(samples []Sample, t time.Time) int {
	return sort.Search(len(samples), func(i int) bool { return !samples[i].Time.Before(t) })
}

func makeSegment(samples []Sample, lo, hi int, start, end time.Time, cfg Config) Segment {
	ind := aggregate(samples[lo:hi], cfg)
	return Segment{
		Start:      start,
		End:        end,
		Duration:   end.Sub(start),
		Indicators: ind,
		Pattern:    Classify(ind, cfg.Thresholds),
		lo:         lo,
		hi:         hi,
	}
}

// mergeRange joins segs[from:to] into one segment re-aggregated from the raw samples
func mergeRange(samples []Sample, segs []Segment, from, to int, cfg Config) Segment {
	if to-from == 1 {
		return segs[from]
	}
	return makeSegment(samples, segs[from].lo, segs[to-1].hi, segs[from].Start, segs[to-1].End, cfg)
}

// coalesce merges adjacent segments sharing a pattern, leftmost pair first, while more than
// cfg.TargetMin segments remain. Equal neighbours left at the floor stay separate.
func coalesce(samples []Sample, segs []Segment, cfg Config) []Segment {
	for len(segs) > cfg.TargetMin {
		i := 1
		for i < len(segs) && segs[i].Pattern != segs[i-1].Pattern {
			i++
		}
		if i == len(segs) {
			return segs
		}
		merged := mergeRange(samples, segs, i-1, i+1, cfg)
		segs = append(append(segs[:i-1:i-1], merged), segs[i+1:]...)
	}
	return segs
}

// renumber assigns sequential IDs starting at 1
func renumber(segs []Segment) {
	for i := range segs {
		segs[i].ID = i + 1
	}
}
