package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}
	y.config = config
	return config, nil
}

// parseYAML converts the on-disk YAML layout into ConfigData
func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Profiles    []ProfileYAML    `yaml:"profiles,omitempty"`
		Series      []SeriesYAML     `yaml:"series,omitempty"`
		Storage     StorageYAML      `yaml:"storage,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Profiles:    make([]ProfileData, len(yamlConfig.Profiles)),
		Series:      make([]SeriesData, len(yamlConfig.Series)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, p := range yamlConfig.Profiles {
		config.Profiles[i] = ProfileData{
			Name:                      p.Name,
			Description:               p.Description,
			Units:                     p.Units,
			TargetLow:                 p.TargetLow,
			TargetHigh:                p.TargetHigh,
			RiskLow:                   p.RiskLow,
			RiskLowFraction:           p.RiskLowFraction,
			RiskHigh:                  p.RiskHigh,
			RiskHighFraction:          p.RiskHighFraction,
			MaxCV:                     p.MaxCV,
			WindowDuration:            p.WindowDuration,
			WindowPoints:              p.WindowPoints,
			MinSegmentDuration:        p.MinSegmentDuration,
			FusionBucket:              p.FusionBucket,
			MaxSegments:               p.MaxSegments,
			TargetMinSegments:         p.TargetMinSegments,
			TargetMaxSegments:         p.TargetMaxSegments,
			MinEffectSize:             p.MinEffectSize,
			MinGradientChange:         p.MinGradientChange,
			MeanScale:                 p.MeanScale,
			DispersionScale:           p.DispersionScale,
			MeanEpsilon:               p.MeanEpsilon,
			DispersionEpsilon:         p.DispersionEpsilon,
			ImportanceDuration:        p.Importance.Duration,
			ImportanceDistinctiveness: p.Importance.Distinctiveness,
			ImportanceSeverity:        p.Importance.Severity,
			Parallel:                  p.Parallel,
		}
	}

	for i, s := range yamlConfig.Series {
		config.Series[i] = SeriesData{
			Name:        s.Name,
			Profile:     s.Profile,
			Source:      s.Source,
			Path:        s.Path,
			Table:       s.Table,
			TimeColumn:  s.TimeColumn,
			ValueColumn: s.ValueColumn,
			KeyColumn:   s.KeyColumn,
			Key:         s.Key,
			EventsPath:  s.EventsPath,
		}
	}

	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{
			Path: yamlConfig.Storage.SQLite.Path,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}

		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:       controller.RESTServer.Cert,
				Key:        controller.RESTServer.Key,
				Port:       controller.RESTServer.Port,
				ListenAddr: controller.RESTServer.ListenAddr,
			}
		}

		if controller.AnalysisCache != nil {
			config.Controllers[i].AnalysisCache = &AnalysisCacheData{
				Interval: controller.AnalysisCache.Interval,
				Lookback: controller.AnalysisCache.Lookback,
			}
		}

		if controller.HealthServer != nil {
			config.Controllers[i].HealthServer = &HealthServerData{
				Cert:       controller.HealthServer.Cert,
				Key:        controller.HealthServer.Key,
				Port:       controller.HealthServer.Port,
				ListenAddr: controller.HealthServer.ListenAddr,
			}
		}

		if controller.Management != nil {
			config.Controllers[i].Management = &ManagementData{
				Cert:       controller.Management.Cert,
				Key:        controller.Management.Key,
				Port:       controller.Management.Port,
				ListenAddr: controller.Management.ListenAddr,
				AuthToken:  controller.Management.AuthToken,
			}
		}
	}

	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		return y.LoadConfig()
	}
	return y.config, nil
}

// GetProfiles returns the built-in profiles overlaid with the configured ones
func (y *YAMLProvider) GetProfiles() ([]ProfileData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return mergeProfiles(cfg.Profiles), nil
}

// GetProfile returns a single profile by name
func (y *YAMLProvider) GetProfile(name string) (*ProfileData, error) {
	profiles, err := y.GetProfiles()
	if err != nil {
		return nil, err
	}
	return findProfile(profiles, name)
}

// GetSeries returns series configurations
func (y *YAMLProvider) GetSeries() ([]SeriesData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return cfg.Series, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &cfg.Storage, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	cfg, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return cfg.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags
type ProfileYAML struct {
	Name               string         `yaml:"name"`
	Description        string         `yaml:"description,omitempty"`
	Units              string         `yaml:"units,omitempty"`
	TargetLow          float64        `yaml:"target-low,omitempty"`
	TargetHigh         float64        `yaml:"target-high,omitempty"`
	RiskLow            float64        `yaml:"risk-low,omitempty"`
	RiskLowFraction    float64        `yaml:"risk-low-fraction,omitempty"`
	RiskHigh           float64        `yaml:"risk-high,omitempty"`
	RiskHighFraction   float64        `yaml:"risk-high-fraction,omitempty"`
	MaxCV              float64        `yaml:"max-cv,omitempty"`
	WindowDuration     string         `yaml:"window-duration,omitempty"`
	WindowPoints       int            `yaml:"window-points,omitempty"`
	MinSegmentDuration string         `yaml:"min-segment-duration,omitempty"`
	FusionBucket       string         `yaml:"fusion-bucket,omitempty"`
	MaxSegments        int            `yaml:"max-segments,omitempty"`
	TargetMinSegments  int            `yaml:"target-min-segments,omitempty"`
	TargetMaxSegments  int            `yaml:"target-max-segments,omitempty"`
	MinEffectSize      float64        `yaml:"min-effect-size,omitempty"`
	MinGradientChange  float64        `yaml:"min-gradient-change,omitempty"`
	MeanScale          float64        `yaml:"mean-scale,omitempty"`
	DispersionScale    float64        `yaml:"dispersion-scale,omitempty"`
	MeanEpsilon        float64        `yaml:"mean-epsilon,omitempty"`
	DispersionEpsilon  float64        `yaml:"dispersion-epsilon,omitempty"`
	Importance         ImportanceYAML `yaml:"importance,omitempty"`
	Parallel           bool           `yaml:"parallel,omitempty"`
}

type ImportanceYAML struct {
	Duration        float64 `yaml:"duration,omitempty"`
	Distinctiveness float64 `yaml:"distinctiveness,omitempty"`
	Severity        float64 `yaml:"severity,omitempty"`
}

type SeriesYAML struct {
	Name        string `yaml:"name"`
	Profile     string `yaml:"profile"`
	Source      string `yaml:"source,omitempty"`
	Path        string `yaml:"path,omitempty"`
	Table       string `yaml:"table,omitempty"`
	TimeColumn  string `yaml:"time-column,omitempty"`
	ValueColumn string `yaml:"value-column,omitempty"`
	KeyColumn   string `yaml:"key-column,omitempty"`
	Key         string `yaml:"key,omitempty"`
	EventsPath  string `yaml:"events-path,omitempty"`
}

type StorageYAML struct {
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type ControllerYAML struct {
	Type          string             `yaml:"type,omitempty"`
	RESTServer    *RESTServerYAML    `yaml:"rest,omitempty"`
	AnalysisCache *AnalysisCacheYAML `yaml:"analysiscache,omitempty"`
	HealthServer  *HealthServerYAML  `yaml:"healthserver,omitempty"`
	Management    *ManagementYAML    `yaml:"management,omitempty"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type AnalysisCacheYAML struct {
	Interval string `yaml:"interval,omitempty"`
	Lookback string `yaml:"lookback,omitempty"`
}

type HealthServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

type ManagementYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	AuthToken  string `yaml:"auth-token,omitempty"`
}
