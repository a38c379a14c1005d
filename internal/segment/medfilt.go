package segment

import "sort"

// MedFilt applies a running median of odd width kernelSize. Positions past either end of
// the stream repeat the nearest edge value so a level series stays level at its borders.
func MedFilt(data []float64, kernelSize int) []float64 {
	if kernelSize < 1 || kernelSize%2 == 0 {
		panic("kernelSize must be positive odd integer")
	}
	n := len(data)
	if n == 0 {
		return nil
	}

	half := kernelSize / 2
	result := make([]float64, n)
	window := make([]float64, kernelSize)

	for i := 0; i < n; i++ {
		for j := -half; j <= half; j++ {
			idx := i + j
			switch {
			case idx < 0:
				idx = 0
			case idx >= n:
				idx = n - 1
			}
			window[j+half] = data[idx]
		}
		sort.Float64s(window)
		result[i] = window[half]
	}
	return result
}
