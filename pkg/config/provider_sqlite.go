package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/chrissnell/vitalseg/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Migrations holds the SQLite configuration schema
//
//go:embed migrations/*.sql
var Migrations embed.FS

const defaultConfigName = "default"

// ErrSchemaAhead is returned when the configuration database was migrated by a newer build
var ErrSchemaAhead = errors.New("configuration schema is newer than this build")

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the configuration database and brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	return NewSQLiteProviderWithLogger(dbPath, nil)
}

// NewSQLiteProviderWithLogger is NewSQLiteProvider with migration progress logged to logger
func NewSQLiteProviderWithLogger(dbPath string, logger *zap.SugaredLogger) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(Migrations, "migrations", "schema_migrations", "sqlite"), logger)
	status, err := migrator.Status()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read SQLite configuration schema: %w", err)
	}
	if status.Ahead() {
		db.Close()
		return nil, fmt.Errorf("%w: %s is at version %d, this build knows %d", ErrSchemaAhead, dbPath, status.Current, status.Latest)
	}
	if len(status.Pending) > 0 && logger != nil {
		logger.Infof("applying %d configuration schema migrations to %s", len(status.Pending), dbPath)
	}
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	profiles, err := s.configuredProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	config.Profiles = profiles

	series, err := s.GetSeries()
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	config.Series = series

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetProfiles returns the built-in profiles overlaid with the stored ones
func (s *SQLiteProvider) GetProfiles() ([]ProfileData, error) {
	profiles, err := s.configuredProfiles()
	if err != nil {
		return nil, err
	}
	return mergeProfiles(profiles), nil
}

// GetProfile returns a single profile by name
func (s *SQLiteProvider) GetProfile(name string) (*ProfileData, error) {
	profiles, err := s.GetProfiles()
	if err != nil {
		return nil, err
	}
	return findProfile(profiles, name)
}

func (s *SQLiteProvider) configuredProfiles() ([]ProfileData, error) {
	query := `
		SELECT name, description, units, target_low, target_high,
		       risk_low, risk_low_fraction, risk_high, risk_high_fraction, max_cv,
		       window_duration, window_points, min_segment_duration, fusion_bucket,
		       max_segments, target_min_segments, target_max_segments,
		       min_effect_size, min_gradient_change, mean_scale, dispersion_scale,
		       mean_epsilon, dispersion_epsilon,
		       importance_duration, importance_distinctiveness, importance_severity,
		       parallel
		FROM profiles
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []ProfileData
	for rows.Next() {
		var p ProfileData
		var description, units, windowDuration, minSegmentDuration, fusionBucket sql.NullString
		var windowPoints, maxSegments, targetMin, targetMax sql.NullInt64
		var targetLow, targetHigh, riskLow, riskLowFraction, riskHigh, riskHighFraction, maxCV sql.NullFloat64
		var minEffect, minGradient, meanScale, dispersionScale, meanEpsilon, dispersionEpsilon sql.NullFloat64
		var impDuration, impDistinct, impSeverity sql.NullFloat64
		var parallel sql.NullBool

		err := rows.Scan(
			&p.Name, &description, &units, &targetLow, &targetHigh,
			&riskLow, &riskLowFraction, &riskHigh, &riskHighFraction, &maxCV,
			&windowDuration, &windowPoints, &minSegmentDuration, &fusionBucket,
			&maxSegments, &targetMin, &targetMax,
			&minEffect, &minGradient, &meanScale, &dispersionScale,
			&meanEpsilon, &dispersionEpsilon,
			&impDuration, &impDistinct, &impSeverity,
			&parallel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}

		// NULL columns keep their zero value, which means "engine default"
		p.Description = description.String
		p.Units = units.String
		p.TargetLow = targetLow.Float64
		p.TargetHigh = targetHigh.Float64
		p.RiskLow = riskLow.Float64
		p.RiskLowFraction = riskLowFraction.Float64
		p.RiskHigh = riskHigh.Float64
		p.RiskHighFraction = riskHighFraction.Float64
		p.MaxCV = maxCV.Float64
		p.WindowDuration = windowDuration.String
		p.WindowPoints = int(windowPoints.Int64)
		p.MinSegmentDuration = minSegmentDuration.String
		p.FusionBucket = fusionBucket.String
		p.MaxSegments = int(maxSegments.Int64)
		p.TargetMinSegments = int(targetMin.Int64)
		p.TargetMaxSegments = int(targetMax.Int64)
		p.MinEffectSize = minEffect.Float64
		p.MinGradientChange = minGradient.Float64
		p.MeanScale = meanScale.Float64
		p.DispersionScale = dispersionScale.Float64
		p.MeanEpsilon = meanEpsilon.Float64
		p.DispersionEpsilon = dispersionEpsilon.Float64
		p.ImportanceDuration = impDuration.Float64
		p.ImportanceDistinctiveness = impDistinct.Float64
		p.ImportanceSeverity = impSeverity.Float64
		p.Parallel = parallel.Bool

		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// GetSeries returns series configurations from the database
func (s *SQLiteProvider) GetSeries() ([]SeriesData, error) {
	query := `
		SELECT name, profile, source, path, table_name, time_column,
		       value_column, key_column, key_value, events_path
		FROM series
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default')
		ORDER BY name
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var series []SeriesData
	for rows.Next() {
		var sd SeriesData
		var path, table, timeColumn, valueColumn, keyColumn, key, eventsPath sql.NullString

		err := rows.Scan(&sd.Name, &sd.Profile, &sd.Source, &path, &table, &timeColumn,
			&valueColumn, &keyColumn, &key, &eventsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}

		sd.Path = path.String
		sd.Table = table.String
		sd.TimeColumn = timeColumn.String
		sd.ValueColumn = valueColumn.String
		sd.KeyColumn = keyColumn.String
		sd.Key = key.String
		sd.EventsPath = eventsPath.String

		series = append(series, sd)
	}

	return series, rows.Err()
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `
		SELECT backend_type, timescale_connection_string, sqlite_path
		FROM storage_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var connectionString, sqlitePath sql.NullString

		if err := rows.Scan(&backendType, &connectionString, &sqlitePath); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "timescaledb":
			storage.TimescaleDB = &TimescaleDBData{ConnectionString: connectionString.String}
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: sqlitePath.String}
		}
	}

	return storage, rows.Err()
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	query := `
		SELECT controller_type,
		       rest_cert, rest_key, rest_port, rest_listen_addr,
		       cache_interval, cache_lookback,
		       health_cert, health_key, health_port, health_listen_addr,
		       management_cert, management_key, management_port, management_listen_addr, management_auth_token
		FROM controller_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND enabled = 1
		ORDER BY id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller configs: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controllerType string
		var restCert, restKey, restListenAddr sql.NullString
		var restPort sql.NullInt64
		var cacheInterval, cacheLookback sql.NullString
		var healthCert, healthKey, healthListenAddr sql.NullString
		var healthPort sql.NullInt64
		var mgmtCert, mgmtKey, mgmtListenAddr, mgmtToken sql.NullString
		var mgmtPort sql.NullInt64

		err := rows.Scan(
			&controllerType,
			&restCert, &restKey, &restPort, &restListenAddr,
			&cacheInterval, &cacheLookback,
			&healthCert, &healthKey, &healthPort, &healthListenAddr,
			&mgmtCert, &mgmtKey, &mgmtPort, &mgmtListenAddr, &mgmtToken,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller config row: %w", err)
		}

		controller := ControllerData{Type: controllerType}

		switch controllerType {
		case "rest":
			controller.RESTServer = &RESTServerData{
				Cert:       restCert.String,
				Key:        restKey.String,
				Port:       int(restPort.Int64),
				ListenAddr: restListenAddr.String,
			}
		case "analysiscache":
			controller.AnalysisCache = &AnalysisCacheData{
				Interval: cacheInterval.String,
				Lookback: cacheLookback.String,
			}
		case "healthserver":
			controller.HealthServer = &HealthServerData{
				Cert:       healthCert.String,
				Key:        healthKey.String,
				Port:       int(healthPort.Int64),
				ListenAddr: healthListenAddr.String,
			}
		case "management":
			controller.Management = &ManagementData{
				Cert:       mgmtCert.String,
				Key:        mgmtKey.String,
				Port:       int(mgmtPort.Int64),
				ListenAddr: mgmtListenAddr.String,
				AuthToken:  mgmtToken.String,
			}
		}

		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Write methods for configuration management

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for _, profile := range configData.Profiles {
		if err := s.insertProfile(tx, configID, &profile); err != nil {
			return fmt.Errorf("failed to insert profile %s: %w", profile.Name, err)
		}
	}

	for _, series := range configData.Series {
		if err := s.insertSeries(tx, configID, &series); err != nil {
			return fmt.Errorf("failed to insert series %s: %w", series.Name, err)
		}
	}

	if err := s.insertStorageConfigs(tx, configID, &configData.Storage); err != nil {
		return fmt.Errorf("failed to insert storage configs: %w", err)
	}

	for _, controller := range configData.Controllers {
		if err := s.insertController(tx, configID, &controller); err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", controller.Type, err)
		}
	}

	return tx.Commit()
}

// AddProfile stores a new profile, or replaces a stored profile of the same name
func (s *SQLiteProvider) AddProfile(profile *ProfileData) error {
	if _, err := profile.SegmentConfig(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM profiles WHERE config_id = ? AND name = ?", configID, profile.Name); err != nil {
		return fmt.Errorf("failed to replace profile %s: %w", profile.Name, err)
	}
	if err := s.insertProfile(tx, configID, profile); err != nil {
		return fmt.Errorf("failed to insert profile %s: %w", profile.Name, err)
	}

	return tx.Commit()
}

// DeleteProfile removes a stored profile. Built-in profiles cannot be deleted.
func (s *SQLiteProvider) DeleteProfile(name string) error {
	result, err := s.db.Exec(`
		DELETE FROM profiles
		WHERE config_id = (SELECT id FROM configs WHERE name = 'default') AND name = ?
	`, name)
	if err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return nil
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM configs WHERE name = ?", defaultConfigName).Scan(&id)
	if err == nil {
		_, err = tx.Exec("UPDATE configs SET updated_at = datetime('now') WHERE id = ?", id)
		return id, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	result, err := tx.Exec(`INSERT INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))`, defaultConfigName)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM profiles WHERE config_id = ?",
		"DELETE FROM series WHERE config_id = ?",
		"DELETE FROM storage_configs WHERE config_id = ?",
		"DELETE FROM controller_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertProfile(tx *sql.Tx, configID int64, p *ProfileData) error {
	query := `
		INSERT INTO profiles (
			config_id, name, description, units, target_low, target_high,
			risk_low, risk_low_fraction, risk_high, risk_high_fraction, max_cv,
			window_duration, window_points, min_segment_duration, fusion_bucket,
			max_segments, target_min_segments, target_max_segments,
			min_effect_size, min_gradient_change, mean_scale, dispersion_scale,
			mean_epsilon, dispersion_epsilon,
			importance_duration, importance_distinctiveness, importance_severity,
			parallel
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		configID, p.Name, nullString(p.Description), nullString(p.Units), p.TargetLow, p.TargetHigh,
		p.RiskLow, p.RiskLowFraction, p.RiskHigh, p.RiskHighFraction, p.MaxCV,
		nullString(p.WindowDuration), p.WindowPoints, nullString(p.MinSegmentDuration), nullString(p.FusionBucket),
		p.MaxSegments, p.TargetMinSegments, p.TargetMaxSegments,
		p.MinEffectSize, p.MinGradientChange, p.MeanScale, p.DispersionScale,
		p.MeanEpsilon, p.DispersionEpsilon,
		p.ImportanceDuration, p.ImportanceDistinctiveness, p.ImportanceSeverity,
		p.Parallel,
	)
	return err
}

func (s *SQLiteProvider) insertSeries(tx *sql.Tx, configID int64, sd *SeriesData) error {
	source := sd.Source
	if source == "" {
		source = "sql"
	}

	query := `
		INSERT INTO series (
			config_id, name, profile, source, path, table_name, time_column,
			value_column, key_column, key_value, events_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.Exec(query,
		configID, sd.Name, sd.Profile, source, nullString(sd.Path), nullString(sd.Table), nullString(sd.TimeColumn),
		nullString(sd.ValueColumn), nullString(sd.KeyColumn), nullString(sd.Key), nullString(sd.EventsPath),
	)
	return err
}

func (s *SQLiteProvider) insertStorageConfigs(tx *sql.Tx, configID int64, storage *StorageData) error {
	if storage.TimescaleDB != nil {
		query := `
			INSERT INTO storage_configs (config_id, backend_type, enabled, timescale_connection_string)
			VALUES (?, 'timescaledb', 1, ?)
		`
		if _, err := tx.Exec(query, configID, storage.TimescaleDB.ConnectionString); err != nil {
			return err
		}
	}

	if storage.SQLite != nil {
		query := `
			INSERT INTO storage_configs (config_id, backend_type, enabled, sqlite_path)
			VALUES (?, 'sqlite', 1, ?)
		`
		if _, err := tx.Exec(query, configID, storage.SQLite.Path); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteProvider) insertController(tx *sql.Tx, configID int64, controller *ControllerData) error {
	query := `
		INSERT INTO controller_configs (
			config_id, controller_type, enabled,
			rest_cert, rest_key, rest_port, rest_listen_addr,
			cache_interval, cache_lookback,
			health_cert, health_key, health_port, health_listen_addr,
			management_cert, management_key, management_port, management_listen_addr, management_auth_token
		) VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var restCert, restKey, restListenAddr sql.NullString
	var restPort sql.NullInt64
	var cacheInterval, cacheLookback sql.NullString
	var healthCert, healthKey, healthListenAddr sql.NullString
	var healthPort sql.NullInt64
	var mgmtCert, mgmtKey, mgmtListenAddr, mgmtToken sql.NullString
	var mgmtPort sql.NullInt64

	if controller.RESTServer != nil {
		restCert = nullString(controller.RESTServer.Cert)
		restKey = nullString(controller.RESTServer.Key)
		restPort = sql.NullInt64{Int64: int64(controller.RESTServer.Port), Valid: controller.RESTServer.Port != 0}
		restListenAddr = nullString(controller.RESTServer.ListenAddr)
	}

	if controller.AnalysisCache != nil {
		cacheInterval = nullString(controller.AnalysisCache.Interval)
		cacheLookback = nullString(controller.AnalysisCache.Lookback)
	}

	if controller.HealthServer != nil {
		healthCert = nullString(controller.HealthServer.Cert)
		healthKey = nullString(controller.HealthServer.Key)
		healthPort = sql.NullInt64{Int64: int64(controller.HealthServer.Port), Valid: controller.HealthServer.Port != 0}
		healthListenAddr = nullString(controller.HealthServer.ListenAddr)
	}

	if controller.Management != nil {
		mgmtCert = nullString(controller.Management.Cert)
		mgmtKey = nullString(controller.Management.Key)
		mgmtPort = sql.NullInt64{Int64: int64(controller.Management.Port), Valid: controller.Management.Port != 0}
		mgmtListenAddr = nullString(controller.Management.ListenAddr)
		mgmtToken = nullString(controller.Management.AuthToken)
	}

	_, err := tx.Exec(query, configID, controller.Type,
		restCert, restKey, restPort, restListenAddr,
		cacheInterval, cacheLookback,
		healthCert, healthKey, healthPort, healthListenAddr,
		mgmtCert, mgmtKey, mgmtPort, mgmtListenAddr, mgmtToken,
	)
	return err
}

// SetManagementToken stores the auth token of the management controller
func (s *SQLiteProvider) SetManagementToken(token string) error {
	result, err := s.db.Exec(`
		UPDATE controller_configs SET management_auth_token = ?
		WHERE controller_type = 'management'
		  AND config_id = (SELECT id FROM configs WHERE name = 'default')
	`, token)
	if err != nil {
		return fmt.Errorf("failed to update management token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("no management controller configured")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
