package segment

import "testing"

func TestInferCause(t *testing.T) {
	p := DefaultConfig().Transition

	tests := []struct {
		name     string
		from, to Indicators
		expected Cause
	}{
		{"better control", Indicators{Mean: 10, Dispersion: 3, InRange: 0.4}, Indicators{Mean: 7, Dispersion: 1, InRange: 0.8}, CauseInterventionEffective},
		{"worse control", Indicators{Mean: 6.5, Dispersion: 0.5, InRange: 1}, Indicators{Mean: 11, Dispersion: 2, InRange: 0.35}, CauseLossOfControl},
		{"shifted up", Indicators{Mean: 6, Dispersion: 1, InRange: 0.9}, Indicators{Mean: 8, Dispersion: 1.1, InRange: 0.88}, CauseExternalStressor},
		{"shifted down", Indicators{Mean: 12, Dispersion: 1, InRange: 0.2}, Indicators{Mean: 9, Dispersion: 1.1, InRange: 0.22}, CauseTreatmentIntensification},
		{"noisier", Indicators{Mean: 7, Dispersion: 1, InRange: 0.8}, Indicators{Mean: 7.2, Dispersion: 2, InRange: 0.78}, CauseVariabilityIncrease},
		{"calmer", Indicators{Mean: 7, Dispersion: 2, InRange: 0.8}, Indicators{Mean: 7.2, Dispersion: 1, InRange: 0.82}, CauseStabilization},
		{"nothing stands out", Indicators{Mean: 7, Dispersion: 1, InRange: 0.8}, Indicators{Mean: 7.1, Dispersion: 1.1, InRange: 0.81}, CauseUnexplained},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferCause(tt.from, tt.to, p); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestAnalyzeTransitions(t *testing.T) {
	p := DefaultConfig().Transition
	segs := []Segment{
		{ID: 1, Start: at(0), End: at(48), Pattern: PatternStableOptimal, Indicators: Indicators{Mean: 6.5, Dispersion: 0.5, InRange: 1}},
		{ID: 2, Start: at(48), End: at(96), Pattern: PatternLowTargetRatio, Indicators: Indicators{Mean: 11, Dispersion: 2, InRange: 0.35}},
		{ID: 3, Start: at(96), End: at(144), Pattern: PatternStableAcceptable, Indicators: Indicators{Mean: 8, Dispersion: 1.6, InRange: 0.6}},
		{ID: 4, Start: at(144), End: at(192), Pattern: PatternStableAcceptable, Indicators: Indicators{Mean: 8, Dispersion: 1.6, InRange: 0.62}},
	}

	transitions := AnalyzeTransitions(segs, p)
	if len(transitions) != 2 {
		t.Fatalf("expected 2 transitions (equal labels produce none), got %d", len(transitions))
	}

	first := transitions[0]
	if first.FromID != 1 || first.ToID != 2 || !first.Time.Equal(at(48)) {
		t.Errorf("unexpected first transition %+v", first)
	}
	// 0.4*4.5/5 + 0.3*1.5/2 + 0.3*0.65
	if !almostEqual(first.Strength, 0.78, 1e-9) {
		t.Errorf("expected strength 0.78, got %f", first.Strength)
	}
	if first.Significance != SignificanceMajorDeterioration {
		t.Errorf("expected major deterioration, got %s", first.Significance)
	}

	second := transitions[1]
	if second.Significance != SignificanceModerateImprovement && second.Significance != SignificanceMinorImprovement {
		t.Errorf("expected an improvement, got %s", second.Significance)
	}
}

func TestTransitionStrengthClipped(t *testing.T) {
	p := DefaultConfig().Transition
	s := transitionStrength(Indicators{Mean: 5, Dispersion: 0.5, InRange: 1}, Indicators{Mean: 25, Dispersion: 8, InRange: 0}, p)
	if s != 1 {
		t.Errorf("expected strength clipped to 1, got %f", s)
	}
}

func TestSignificanceDirectionFallsBackToSeverity(t *testing.T) {
	p := DefaultConfig().Transition
	from := Segment{Pattern: PatternHighVariability, Indicators: Indicators{Mean: 8, Dispersion: 3, InRange: 0.6}}
	to := Segment{Pattern: PatternStableAcceptable, Indicators: Indicators{Mean: 8, Dispersion: 2.5, InRange: 0.61}}
	if got := significance(from, to, 0.1, p); got != SignificanceMinorImprovement {
		t.Errorf("expected minor improvement, got %s", got)
	}
	if got := significance(to, from, 0.1, p); got != SignificanceMinorDeterioration {
		t.Errorf("expected minor deterioration, got %s", got)
	}
}
