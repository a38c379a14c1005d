package segment

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ClusteringDetector groups windows into k regimes over the standardized feature space
// and reports persistent regime switches
type ClusteringDetector struct {
	params ClusteringParams
}

func (d *ClusteringDetector) Kind() DetectorKind {
	return KindClustering
}

func (d *ClusteringDetector) Detect(streams *Streams) ([]Candidate, error) {
	rows := streams.Len()
	if rows < d.params.MinRows {
		return nil, &DetectorFailure{
			Kind:   KindClustering,
			Reason: fmt.Sprintf("need at least %d windows, have %d", d.params.MinRows, rows),
		}
	}

	features := standardizedFeatures(streams)
	if features == nil {
		return nil, &DetectorFailure{Kind: KindClustering, Reason: "all features are constant"}
	}

	var all []Candidate
	for k := d.params.KMin; k <= d.params.KMax && k <= rows; k++ {
		labels, centroids := kmeans(features, k, d.params.MaxIterations)
		runs := smoothRuns(labelRuns(labels), d.params.MinRun)
		for r := 1; r < len(runs); r++ {
			from := centroids.RawRowView(runs[r-1].label)
			to := centroids.RawRowView(runs[r].label)
			magnitude := floats.Distance(from, to, 2)
			all = append(all, Candidate{
				Index:      runs[r].start,
				Time:       streams.Boundary(runs[r].start),
				Kind:       KindClustering,
				Magnitude:  magnitude,
				Confidence: confidence(magnitude),
			})
		}
	}
	return mergeNearby(all, d.params.MergeTolerance), nil
}

// standardizedFeatures builds a rows x features matrix of z-scores. Constant features are
// left out; nil is returned when nothing varies.
func standardizedFeatures(streams *Streams) *mat.Dense {
	var columns [][]float64
	for _, name := range []IndicatorName{IndicatorMean, IndicatorDispersion, IndicatorInRange, IndicatorSlope} {
		col := streams.Stream(name)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 {
			continue
		}
		for i, v := range col {
			col[i] = stat.StdScore(v, mean, std)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil
	}

	rows := len(columns[0])
	m := mat.NewDense(rows, len(columns), nil)
	for j, col := range columns {
		m.SetCol(j, col)
	}
	return m
}

// kmeans runs Lloyd's algorithm seeded with evenly spaced rows, which keeps the result
// deterministic for a given input
func kmeans(x *mat.Dense, k, maxIter int) ([]int, *mat.Dense) {
	rows, cols := x.Dims()
	centroids := mat.NewDense(k, cols, nil)
	for j := 0; j < k; j++ {
		centroids.SetRow(j, x.RawRowView((2*j+1)*rows/(2*k)))
	}

	labels := make([]int, rows)
	for i := range labels {
		labels[i] = -1
	}

	sums := make([]float64, cols)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := 0; i < rows; i++ {
			row := x.RawRowView(i)
			best, bestDist := 0, floats.Distance(row, centroids.RawRowView(0), 2)
			for j := 1; j < k; j++ {
				if dist := floats.Distance(row, centroids.RawRowView(j), 2); dist < bestDist {
					best, bestDist = j, dist
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		for j := 0; j < k; j++ {
			for c := range sums {
				sums[c] = 0
			}
			n := 0
			for i := 0; i < rows; i++ {
				if labels[i] == j {
					floats.Add(sums, x.RawRowView(i))
					n++
				}
			}
			if n == 0 {
				continue
			}
			floats.Scale(1/float64(n), sums)
			centroids.SetRow(j, sums)
		}
	}
	return labels, centroids
}

type labelRun struct {
	label  int
	start  int
	length int
}

func labelRuns(labels []int) []labelRun {
	var runs []labelRun
	for i, l := range labels {
		if len(runs) > 0 && runs[len(runs)-1].label == l {
			runs[len(runs)-1].length++
			continue
		}
		runs = append(runs, labelRun{label: l, start: i, length: 1})
	}
	return runs
}

// smoothRuns absorbs runs shorter than minRun into their predecessor (the leading run into
// its successor) and joins neighbours that end up with the same label
func smoothRuns(runs []labelRun, minRun int) []labelRun {
	var out []labelRun
	for _, r := range runs {
		if len(out) > 0 && (r.length < minRun || out[len(out)-1].label == r.label) {
			out[len(out)-1].length += r.length
			continue
		}
		out = append(out, r)
	}

	if len(out) > 1 && out[0].length < minRun {
		out[1].start = out[0].start
		out[1].length += out[0].length
		out = out[1:]
	}

	var joined []labelRun
	for _, r := range out {
		if len(joined) > 0 && joined[len(joined)-1].label == r.label {
			joined[len(joined)-1].length += r.length
			continue
		}
		joined = append(joined, r)
	}
	return joined
}

// mergeNearby collapses candidates within tolerance windows of each other, keeping the
// one with the larger magnitude
func mergeNearby(candidates []Candidate, tolerance int) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Index < candidates[j].Index
	})

	var out []Candidate
	for _, c := range candidates {
		if n := len(out); n > 0 && c.Index-out[n-1].Index <= tolerance {
			if c.Magnitude > out[n-1].Magnitude {
				out[n-1] = c
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
