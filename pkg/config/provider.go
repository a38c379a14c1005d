package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
)

// DefaultProfile is used by series and requests that name no profile
const DefaultProfile = "glucose"

// ErrProfileNotFound is returned when a series or request names a profile that is not configured
var ErrProfileNotFound = errors.New("profile not found")

// ConfigProvider defines the interface for configuration providers
type ConfigProvider interface {
	// LoadConfig loads the complete configuration
	LoadConfig() (*ConfigData, error)

	// GetProfiles returns the analysis profiles
	GetProfiles() ([]ProfileData, error)

	// GetProfile returns a single analysis profile by name
	GetProfile(name string) (*ProfileData, error)

	// GetSeries returns the series configured for periodic analysis
	GetSeries() ([]SeriesData, error)

	// GetStorageConfig returns storage configuration
	GetStorageConfig() (*StorageData, error)

	// GetControllers returns controller configurations
	GetControllers() ([]ControllerData, error)

	// IsReadOnly returns true if the provider doesn't support writes
	IsReadOnly() bool

	// Close closes any resources held by the provider
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Profiles    []ProfileData    `json:"profiles"`
	Series      []SeriesData     `json:"series"`
	Storage     StorageData      `json:"storage"`
	Controllers []ControllerData `json:"controllers"`
}

// ProfileData is the persisted form of an analysis profile. Zero values keep
// the engine defaults; durations are strings such as "6h" or "36h".
type ProfileData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Units       string `json:"units,omitempty"`

	TargetLow        float64 `json:"target_low"`
	TargetHigh       float64 `json:"target_high"`
	RiskLow          float64 `json:"risk_low,omitempty"`
	RiskLowFraction  float64 `json:"risk_low_fraction,omitempty"`
	RiskHigh         float64 `json:"risk_high,omitempty"`
	RiskHighFraction float64 `json:"risk_high_fraction,omitempty"`
	MaxCV            float64 `json:"max_cv,omitempty"`

	WindowDuration     string `json:"window_duration,omitempty"`
	WindowPoints       int    `json:"window_points,omitempty"`
	MinSegmentDuration string `json:"min_segment_duration,omitempty"`
	FusionBucket       string `json:"fusion_bucket,omitempty"`
	MaxSegments        int    `json:"max_segments,omitempty"`
	TargetMinSegments  int    `json:"target_min_segments,omitempty"`
	TargetMaxSegments  int    `json:"target_max_segments,omitempty"`

	MinEffectSize     float64 `json:"min_effect_size,omitempty"`
	MinGradientChange float64 `json:"min_gradient_change,omitempty"`
	MeanScale         float64 `json:"mean_scale,omitempty"`
	DispersionScale   float64 `json:"dispersion_scale,omitempty"`
	MeanEpsilon       float64 `json:"mean_epsilon,omitempty"`
	DispersionEpsilon float64 `json:"dispersion_epsilon,omitempty"`

	ImportanceDuration        float64 `json:"importance_duration,omitempty"`
	ImportanceDistinctiveness float64 `json:"importance_distinctiveness,omitempty"`
	ImportanceSeverity        float64 `json:"importance_severity,omitempty"`

	Parallel bool `json:"parallel,omitempty"`
}

// SeriesData describes one series the analysis cache keeps segmented
type SeriesData struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`

	// Source is "sql" (TimescaleDB or SQLite storage) or "csv"
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`

	Table       string `json:"table,omitempty"`
	TimeColumn  string `json:"time_column,omitempty"`
	ValueColumn string `json:"value_column,omitempty"`
	KeyColumn   string `json:"key_column,omitempty"`
	Key         string `json:"key,omitempty"`

	EventsPath string `json:"events_path,omitempty"`
}

// StorageData holds the storage backends
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
}

// TimescaleDBData holds TimescaleDB configuration. The same database serves
// series samples and the result cache.
type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// SQLiteData holds the path of a SQLite database that stores series samples
type SQLiteData struct {
	Path string `json:"path"`
}

// ControllerData represents a controller configuration
type ControllerData struct {
	Type          string             `json:"type"`
	RESTServer    *RESTServerData    `json:"rest,omitempty"`
	AnalysisCache *AnalysisCacheData `json:"analysiscache,omitempty"`
	HealthServer  *HealthServerData  `json:"healthserver,omitempty"`
	Management    *ManagementData    `json:"management,omitempty"`
}

// RESTServerData holds REST server configuration
type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// AnalysisCacheData holds the periodic re-segmentation schedule
type AnalysisCacheData struct {
	Interval string `json:"interval,omitempty"`
	Lookback string `json:"lookback,omitempty"`
}

// HealthServerData holds gRPC health server configuration
type HealthServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// ManagementData holds the profile management API configuration
type ManagementData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
}

// SegmentConfig converts the profile into an engine configuration, starting
// from segment.DefaultConfig and overriding every field the profile sets.
func (p ProfileData) SegmentConfig() (segment.Config, error) {
	cfg := segment.DefaultConfig()

	if p.TargetLow != 0 || p.TargetHigh != 0 {
		cfg.TargetRange = segment.Range{Low: p.TargetLow, High: p.TargetHigh}
	}
	setFloat(&cfg.Thresholds.RiskLow, p.RiskLow)
	setFloat(&cfg.Thresholds.RiskLowFraction, p.RiskLowFraction)
	setFloat(&cfg.Thresholds.RiskHigh, p.RiskHigh)
	setFloat(&cfg.Thresholds.RiskHighFraction, p.RiskHighFraction)
	setFloat(&cfg.Thresholds.MaxCV, p.MaxCV)

	if err := setDuration(&cfg.WindowDuration, p.WindowDuration); err != nil {
		return cfg, fmt.Errorf("profile %s: invalid window_duration: %w", p.Name, err)
	}
	if err := setDuration(&cfg.MinSegmentDuration, p.MinSegmentDuration); err != nil {
		return cfg, fmt.Errorf("profile %s: invalid min_segment_duration: %w", p.Name, err)
	}
	if err := setDuration(&cfg.Fusion.BucketWidth, p.FusionBucket); err != nil {
		return cfg, fmt.Errorf("profile %s: invalid fusion_bucket: %w", p.Name, err)
	}
	setInt(&cfg.WindowPoints, p.WindowPoints)
	setInt(&cfg.MaxSegments, p.MaxSegments)
	setInt(&cfg.TargetMin, p.TargetMinSegments)
	setInt(&cfg.TargetMax, p.TargetMaxSegments)

	setFloat(&cfg.Statistical.MinEffectSize, p.MinEffectSize)
	setFloat(&cfg.Gradient.MinChange, p.MinGradientChange)
	setFloat(&cfg.Transition.MeanScale, p.MeanScale)
	setFloat(&cfg.Transition.DispersionScale, p.DispersionScale)
	setFloat(&cfg.Transition.MeanEpsilon, p.MeanEpsilon)
	setFloat(&cfg.Transition.DispersionEpsilon, p.DispersionEpsilon)

	setFloat(&cfg.Importance.Duration, p.ImportanceDuration)
	setFloat(&cfg.Importance.Distinctiveness, p.ImportanceDistinctiveness)
	setFloat(&cfg.Importance.Severity, p.ImportanceSeverity)

	cfg.Parallel = p.Parallel

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return cfg, nil
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// BuiltinProfiles returns the profiles available without any configuration
func BuiltinProfiles() []ProfileData {
	return []ProfileData{
		{
			Name:        "glucose",
			Description: "Continuous glucose monitoring",
			Units:       "mmol/L",
			TargetLow:   3.9,
			TargetHigh:  10.0,
		},
		{
			Name:               "heart-rate",
			Description:        "ECG or wearable derived heart rate",
			Units:              "bpm",
			TargetLow:          50,
			TargetHigh:         100,
			RiskLow:            40,
			RiskHigh:           130,
			MaxCV:              0.25,
			WindowDuration:     "1h",
			MinSegmentDuration: "6h",
			FusionBucket:       "1h",
			MinEffectSize:      8,
			MinGradientChange:  4,
			MeanScale:          40,
			DispersionScale:    15,
			MeanEpsilon:        4,
			DispersionEpsilon:  2,
		},
		{
			Name:              "blood-pressure",
			Description:       "Ambulatory systolic blood pressure",
			Units:             "mmHg",
			TargetLow:         90,
			TargetHigh:        135,
			RiskLow:           80,
			RiskHigh:          180,
			RiskHighFraction:  0.1,
			MaxCV:             0.2,
			MinEffectSize:     10,
			MinGradientChange: 5,
			MeanScale:         40,
			DispersionScale:   15,
			MeanEpsilon:       5,
			DispersionEpsilon: 2,
		},
	}
}

// findProfile looks a profile up by name
func findProfile(profiles []ProfileData, name string) (*ProfileData, error) {
	for i := range profiles {
		if profiles[i].Name == name {
			p := profiles[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// mergeProfiles overlays configured profiles on the built-in ones. A
// configured profile replaces the built-in profile of the same name.
func mergeProfiles(configured []ProfileData) []ProfileData {
	merged := BuiltinProfiles()
	for _, p := range configured {
		replaced := false
		for i := range merged {
			if merged[i].Name == p.Name {
				merged[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, p)
		}
	}
	return merged
}
