package database

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is one stored segmentation result of a series
type AnalysisRun struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	SeriesName       string    `gorm:"column:series_name;not null;index:idx_runs_series_created,priority:1"`
	Profile          string    `gorm:"column:profile;not null"`
	Status           string    `gorm:"column:status;not null"`
	Reason           string    `gorm:"column:reason"`
	Evolution        string    `gorm:"column:evolution"`
	PatternStability float64   `gorm:"column:pattern_stability"`
	QualityScore     float64   `gorm:"column:quality_score"`
	SampleCount      int       `gorm:"column:sample_count"`
	RangeStart       time.Time `gorm:"column:range_start"`
	RangeEnd         time.Time `gorm:"column:range_end"`
	ResultJSON       []byte    `gorm:"column:result;type:jsonb"`
	CreatedAt        time.Time `gorm:"column:created_at;index:idx_runs_series_created,priority:2,sort:desc"`

	Segments    []SegmentRecord    `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Transitions []TransitionRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for AnalysisRun
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// SegmentRecord is one segment of a stored run
type SegmentRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	RunID      uuid.UUID `gorm:"type:uuid;column:run_id;not null;index"`
	SegmentID  int       `gorm:"column:segment_id"`
	Start      time.Time `gorm:"column:start_time"`
	End        time.Time `gorm:"column:end_time"`
	Pattern    string    `gorm:"column:pattern"`
	Mean       float64   `gorm:"column:mean"`
	Dispersion float64   `gorm:"column:dispersion"`
	InRange    float64   `gorm:"column:in_range"`
	Stability  float64   `gorm:"column:stability"`
	Samples    int       `gorm:"column:samples"`
}

// TableName specifies the table name for SegmentRecord
func (SegmentRecord) TableName() string {
	return "analysis_segments"
}

// TransitionRecord is one transition of a stored run
type TransitionRecord struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	RunID        uuid.UUID `gorm:"type:uuid;column:run_id;not null;index"`
	FromSegment  int       `gorm:"column:from_segment"`
	ToSegment    int       `gorm:"column:to_segment"`
	Time         time.Time `gorm:"column:time"`
	Strength     float64   `gorm:"column:strength"`
	Cause        string    `gorm:"column:cause"`
	Significance string    `gorm:"column:significance"`
}

// TableName specifies the table name for TransitionRecord
func (TransitionRecord) TableName() string {
	return "analysis_transitions"
}
