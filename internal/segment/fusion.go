package segment

import (
	"sort"
	"time"
)

type fusionBucket struct {
	index     int
	magnitude float64
	weighted  float64 // magnitude-weighted offset from origin, seconds
	offsets   float64 // plain sum of offsets, seconds
	count     int
	kinds     map[DetectorKind]bool
}

// Fuse groups candidates into fixed-width buckets starting at origin and scores every bucket
// by total magnitude times candidate density. Buckets whose neighbourhood (the bucket and
// its direct neighbours) holds fewer than MinAgreement distinct detector kinds are dropped,
// unless the bucket itself holds an external event.
// The result is ordered by score, highest first, with ties going to the earlier time.
func Fuse(candidates []Candidate, origin time.Time, params FusionParams) []FusedChangePoint {
	buckets := make(map[int]*fusionBucket)
	for _, c := range candidates {
		offset := c.Time.Sub(origin)
		idx := int(offset / params.BucketWidth)
		if offset < 0 && offset%params.BucketWidth != 0 {
			idx--
		}
		b, ok := buckets[idx]
		if !ok {
			b = &fusionBucket{index: idx, kinds: make(map[DetectorKind]bool)}
			buckets[idx] = b
		}
		b.magnitude += c.Magnitude
		b.weighted += c.Magnitude * offset.Seconds()
		b.offsets += offset.Seconds()
		b.count++
		b.kinds[c.Kind] = true
	}

	hours := params.BucketWidth.Hours()
	var points []FusedChangePoint
	for idx, b := range buckets {
		support := make(map[DetectorKind]bool)
		for _, n := range []int{idx - 1, idx, idx + 1} {
			if nb, ok := buckets[n]; ok {
				for k := range nb.kinds {
					support[k] = true
				}
			}
		}
		if len(support) < params.MinAgreement && !b.kinds[KindExternal] {
			continue
		}

		seconds := b.offsets / float64(b.count)
		if b.magnitude > 0 {
			seconds = b.weighted / b.magnitude
		}

		points = append(points, FusedChangePoint{
			Time:      origin.Add(time.Duration(seconds * float64(time.Second))),
			Score:     b.magnitude * float64(b.count) / hours,
			Detectors: sortedKinds(b.kinds),
			Count:     b.count,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Score != points[j].Score {
			return points[i].Score > points[j].Score
		}
		return points[i].Time.Before(points[j].Time)
	})
	return points
}

// SelectCuts walks the scored points in order and keeps at most maxCuts of them, skipping any
// point closer than minGap to one already kept. Cuts are returned in time order.
func SelectCuts(points []FusedChangePoint, maxCuts int, minGap time.Duration) []time.Time {
	var cuts []time.Time
	for _, p := range points {
		if len(cuts) >= maxCuts {
			break
		}
		tooClose := false
		for _, c := range cuts {
			if absDuration(p.Time.Sub(c)) < minGap {
				tooClose = true
				break
			}
		}
		if !tooClose {
			cuts = append(cuts, p.Time)
		}
	}

	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })
	return cuts
}

func sortedKinds(kinds map[DetectorKind]bool) []DetectorKind {
	out := make([]DetectorKind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// eventCandidates turns external event timestamps inside (start, end) into candidates
func eventCandidates(events []time.Time, start, end time.Time, magnitude float64) []Candidate {
	var out []Candidate
	for _, e := range events {
		if !e.After(start) || !e.Before(end) {
			continue
		}
		out = append(out, Candidate{
			Index:      -1,
			Time:       e,
			Kind:       KindExternal,
			Magnitude:  magnitude,
			Confidence: 1,
		})
	}
	return out
}
