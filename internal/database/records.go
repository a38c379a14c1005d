package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/google/uuid"
)

// StoredResult is a cached analysis result together with its run metadata
type StoredResult struct {
	RunID     uuid.UUID       `json:"run_id"`
	Series    string          `json:"series"`
	Profile   string          `json:"profile"`
	CreatedAt time.Time       `json:"created_at"`
	Result    *segment.Result `json:"result"`
}

// newAnalysisRun flattens a result into its database rows
func newAnalysisRun(id uuid.UUID, series, profile string, r *segment.Result, now time.Time) (*AnalysisRun, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("error encoding result: %w", err)
	}

	run := &AnalysisRun{
		ID:               id,
		SeriesName:       series,
		Profile:          profile,
		Status:           string(r.Status),
		Reason:           r.Reason,
		Evolution:        string(r.Evolution),
		PatternStability: r.PatternStability,
		QualityScore:     r.Quality.Score,
		SampleCount:      r.Samples,
		ResultJSON:       body,
		CreatedAt:        now,
	}

	if n := len(r.Segments); n > 0 {
		run.RangeStart = r.Segments[0].Start
		run.RangeEnd = r.Segments[n-1].End
	}

	for _, s := range r.Segments {
		run.Segments = append(run.Segments, SegmentRecord{
			RunID:      id,
			SegmentID:  s.ID,
			Start:      s.Start,
			End:        s.End,
			Pattern:    string(s.Pattern),
			Mean:       s.Indicators.Mean,
			Dispersion: s.Indicators.Dispersion,
			InRange:    s.Indicators.InRange,
			Stability:  s.Stability,
			Samples:    s.Indicators.Count,
		})
	}

	for _, t := range r.Transitions {
		run.Transitions = append(run.Transitions, TransitionRecord{
			RunID:        id,
			FromSegment:  t.FromID,
			ToSegment:    t.ToID,
			Time:         t.Time,
			Strength:     t.Strength,
			Cause:        string(t.Cause),
			Significance: string(t.Significance),
		})
	}

	return run, nil
}

// storedResult rebuilds the cached result of a run
func storedResult(run *AnalysisRun) (*StoredResult, error) {
	var r segment.Result
	if err := json.Unmarshal(run.ResultJSON, &r); err != nil {
		return nil, fmt.Errorf("error decoding stored result %s: %w", run.ID, err)
	}
	return &StoredResult{
		RunID:     run.ID,
		Series:    run.SeriesName,
		Profile:   run.Profile,
		CreatedAt: run.CreatedAt,
		Result:    &r,
	}, nil
}
