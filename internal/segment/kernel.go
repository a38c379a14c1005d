package segment

import (
	"math"
	"sort"
)

// rbfKernel holds the Gram matrix of a Gaussian kernel over a one-dimensional signal.
// It scores how homogeneous a contiguous stretch of the signal is.
type rbfKernel struct {
	gram  [][]float64
	gamma float64
}

// newRBFKernel computes the Gram matrix with gamma = 1 / median of the positive
// pairwise squared distances
func newRBFKernel(signal []float64) *rbfKernel {
	n := len(signal)
	k := &rbfKernel{gamma: medianGamma(signal)}

	k.gram = make([][]float64, n)
	for i := 0; i < n; i++ {
		k.gram[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			diff := signal[i] - signal[j]
			k.gram[i][j] = math.Exp(-k.gamma * diff * diff)
		}
	}
	return k
}

func medianGamma(signal []float64) float64 {
	var distances []float64
	for i := 0; i < len(signal); i++ {
		for j := i + 1; j < len(signal); j++ {
			diff := signal[i] - signal[j]
			if d := diff * diff; d > 0 {
				distances = append(distances, d)
			}
		}
	}
	if len(distances) == 0 {
		return 1.0
	}

	sort.Float64s(distances)
	median := distances[len(distances)/2]
	if median == 0 {
		return 1.0
	}
	return 1.0 / median
}

// cost is the kernel cost of signal[start:end]: sum of the diagonal minus the block
// sum divided by the block length. Zero for a perfectly homogeneous block.
func (k *rbfKernel) cost(start, end int) float64 {
	if start >= end || start < 0 || end > len(k.gram) {
		return math.Inf(1)
	}

	diag := 0.0
	total := 0.0
	for i := start; i < end; i++ {
		for j := start; j < end; j++ {
			total += k.gram[i][j]
		}
		diag += k.gram[i][i]
	}
	return diag - total/float64(end-start)
}

// similarity is the mean pairwise kernel similarity of signal[start:end], in [0, 1].
// A block of fewer than two points is fully similar to itself.
func (k *rbfKernel) similarity(start, end int) float64 {
	length := end - start
	if length < 2 {
		return 1.0
	}
	return 1.0 - k.cost(start, end)/float64(length)
}
