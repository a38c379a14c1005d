package segment

import "testing"

func TestMedFilt(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		kernel   int
		expected []float64
	}{
		{
			name:     "empty",
			data:     nil,
			kernel:   3,
			expected: nil,
		},
		{
			name:     "kernel of one is identity",
			data:     []float64{3, 1, 2},
			kernel:   1,
			expected: []float64{3, 1, 2},
		},
		{
			name:     "level series keeps its edges",
			data:     []float64{5, 5, 5, 5},
			kernel:   3,
			expected: []float64{5, 5, 5, 5},
		},
		{
			name:     "spike removed",
			data:     []float64{1, 1, 9, 1, 1},
			kernel:   3,
			expected: []float64{1, 1, 1, 1, 1},
		},
		{
			name:     "step preserved",
			data:     []float64{1, 1, 1, 4, 4, 4},
			kernel:   3,
			expected: []float64{1, 1, 1, 4, 4, 4},
		},
		{
			name:     "wide kernel on short data",
			data:     []float64{2, 8, 4},
			kernel:   5,
			expected: []float64{2, 4, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MedFilt(tt.data, tt.kernel)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d values, got %d", len(tt.expected), len(got))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("index %d: expected %v, got %v", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestMedFiltPanicsOnEvenKernel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for even kernel")
		}
	}()
	MedFilt([]float64{1, 2, 3}, 2)
}
