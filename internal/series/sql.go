package series

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/chrissnell/vitalseg/pkg/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Database drivers registered with database/sql
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads samples from a table in TimescaleDB or SQLite
type SQLSource struct {
	db     *sql.DB
	driver string
	query  string
	keyed  bool
}

// OpenStorage opens the sample database named by the storage configuration,
// preferring TimescaleDB when both backends are configured
func OpenStorage(storage *config.StorageData) (*sql.DB, string, error) {
	switch {
	case storage == nil:
		return nil, "", fmt.Errorf("no storage configured")
	case storage.TimescaleDB != nil && storage.TimescaleDB.ConnectionString != "":
		db, err := sql.Open(DriverPostgres, storage.TimescaleDB.ConnectionString)
		if err != nil {
			return nil, "", fmt.Errorf("error opening TimescaleDB: %w", err)
		}
		return db, DriverPostgres, nil
	case storage.SQLite != nil && storage.SQLite.Path != "":
		db, err := sql.Open(DriverSQLite, storage.SQLite.Path)
		if err != nil {
			return nil, "", fmt.Errorf("error opening SQLite database: %w", err)
		}
		return db, DriverSQLite, nil
	default:
		return nil, "", fmt.Errorf("no sample storage configured")
	}
}

// NewSQLSource builds a source over the table and columns named in sd. Column
// names default to "time" and "value"; when sd.KeyColumn is set rows are
// filtered by the series key passed to Fetch.
func NewSQLSource(db *sql.DB, driver string, sd config.SeriesData) (*SQLSource, error) {
	table := sd.Table
	if table == "" {
		return nil, fmt.Errorf("series %s: no table configured", sd.Name)
	}
	timeColumn := defaultString(sd.TimeColumn, "time")
	valueColumn := defaultString(sd.ValueColumn, "value")

	for _, ident := range []string{table, timeColumn, valueColumn, sd.KeyColumn} {
		if ident != "" && !identifier.MatchString(ident) {
			return nil, fmt.Errorf("series %s: invalid SQL identifier %q", sd.Name, ident)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s FROM %s", timeColumn, valueColumn, table)

	// SQLite stores timestamps in whatever representation the writer chose, so
	// the time bounds are applied after conversion instead of in SQL.
	var conds []string
	if driver == DriverPostgres {
		conds = append(conds, fmt.Sprintf("%s >= $1 AND %s < $2", timeColumn, timeColumn))
	}
	if sd.KeyColumn != "" {
		placeholder := "?"
		if driver == DriverPostgres {
			placeholder = "$3"
		}
		conds = append(conds, fmt.Sprintf("%s = %s", sd.KeyColumn, placeholder))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s", timeColumn)

	return &SQLSource{
		db:     db,
		driver: driver,
		query:  b.String(),
		keyed:  sd.KeyColumn != "",
	}, nil
}

// Fetch returns the samples of series within [from, to)
func (s *SQLSource) Fetch(ctx context.Context, series string, from, to time.Time) ([]segment.Sample, error) {
	var args []any
	if s.driver == DriverPostgres {
		lo, hi := from, to
		if lo.IsZero() {
			lo = time.Unix(0, 0).UTC()
		}
		if hi.IsZero() {
			hi = time.Now().Add(24 * time.Hour)
		}
		args = append(args, lo, hi)
	}
	if s.keyed {
		args = append(args, series)
	}

	rows, err := s.db.QueryContext(ctx, s.query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying samples: %w", err)
	}
	defer rows.Close()

	var samples []segment.Sample
	for rows.Next() {
		var rawTime, rawValue any
		if err := rows.Scan(&rawTime, &rawValue); err != nil {
			return nil, fmt.Errorf("error scanning sample row: %w", err)
		}

		t, err := toTime(rawTime)
		if err != nil {
			return nil, fmt.Errorf("error reading sample time: %w", err)
		}
		if !inRange(t, from, to) {
			continue
		}
		v, err := toFloat(rawValue)
		if err != nil {
			return nil, fmt.Errorf("error reading sample value at %s: %w", t.Format(time.RFC3339), err)
		}
		samples = append(samples, segment.Sample{Time: t, Value: v})
	}

	return samples, rows.Err()
}

// NewSource builds the source configured for sd. db may be nil for CSV series.
func NewSource(sd config.SeriesData, db *sql.DB, driver string) (Source, error) {
	switch sd.Source {
	case "csv":
		if sd.Path == "" {
			return nil, fmt.Errorf("series %s: csv source needs a path", sd.Name)
		}
		return NewCSVSource(sd.Path), nil
	case "sql", "":
		if db == nil {
			return nil, fmt.Errorf("series %s: sql source needs configured storage", sd.Name)
		}
		return NewSQLSource(db, driver, sd)
	default:
		return nil, fmt.Errorf("series %s: unknown source %q", sd.Name, sd.Source)
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
