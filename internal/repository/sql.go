package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/config"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
)

// dialect holds what differs between the supported databases. Queries are
// written with ? placeholders and rebound per dialect.
type dialect struct {
	driverName string
	schema     []string
	rebind     func(string) string
}

var postgresDialect = dialect{
	driverName: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS weather_data (
			id SERIAL PRIMARY KEY,
			location VARCHAR(255),
			region VARCHAR(255),
			country VARCHAR(255),
			condition VARCHAR(255),
			temperature_c FLOAT,
			wind_speed_kph FLOAT,
			precipitation_mm FLOAT,
			date TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_weather_data_location_date ON weather_data (location, date)`,
	},
	rebind: dollarPlaceholders,
}

// AUTOINCREMENT keeps SQLite from handing out the id of a deleted max row again.
var sqliteDialect = dialect{
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS weather_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			location TEXT,
			region TEXT,
			country TEXT,
			condition TEXT,
			temperature_c REAL,
			wind_speed_kph REAL,
			precipitation_mm REAL,
			date DATETIME
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_weather_data_location_date ON weather_data (location, date)`,
	},
	rebind: func(q string) string { return q },
}

func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	selectColumns = `id, COALESCE(location, ''), COALESCE(region, ''), COALESCE(country, ''),
		COALESCE(condition, ''), COALESCE(temperature_c, 0), COALESCE(wind_speed_kph, 0),
		COALESCE(precipitation_mm, 0), date`

	existsQuery = `SELECT 1 FROM weather_data WHERE location = ? AND date = ? LIMIT 1`

	insertQuery = `INSERT INTO weather_data
		(location, region, country, condition, temperature_c, wind_speed_kph, precipitation_mm, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (location, date) DO NOTHING
		RETURNING id`

	listQuery = `SELECT ` + selectColumns + ` FROM weather_data ORDER BY id`

	existsByIDQuery = `SELECT 1 FROM weather_data WHERE id = ?`

	updateConditionQuery = `UPDATE weather_data SET condition = ? WHERE id = ?`

	deleteQuery = `DELETE FROM weather_data WHERE id = ?`
)

// SQLDB is the database/sql backed ObservationRepository. The *sql.DB pool
// hands each operation a connection and takes it back on every return path.
type SQLDB struct {
	db      *sql.DB
	dialect dialect
}

var _ ObservationRepository = (*SQLDB)(nil)

// Open connects to the configured database and verifies the connection.
// The schema is not touched; call EnsureSchema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLDB, error) {
	var (
		d   dialect
		dsn = cfg.DSN()
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		d = postgresDialect
	case config.DriverSQLite:
		d = sqliteDialect
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.Driver == config.DriverSQLite && isMemory(cfg.Path) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	return &SQLDB{db: db, dialect: d}, nil
}

// NewSQLiteDB opens a SQLite database at path and ensures the schema exists.
func NewSQLiteDB(path string) (*SQLDB, error) {
	ctx := context.Background()
	s, err := Open(ctx, config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         path,
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	})
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func sqliteDSN(path string) string {
	params := "_time_format=sqlite"
	if !isMemory(path) {
		params += "&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

func (s *SQLDB) q(query string) string {
	return s.dialect.rebind(query)
}

func (s *SQLDB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error while ensuring schema: %w", err)
		}
	}
	return nil
}

func (s *SQLDB) Exists(ctx context.Context, location string, date models.LocalTime) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(existsQuery), location, date).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking existence: %w", err)
	}
	return true, nil
}

// InsertIfNew checks for an existing (location, date) row before writing.
// The unique index plus ON CONFLICT DO NOTHING covers concurrent inserts that
// both pass the check: the loser gets no RETURNING row and reports OutcomeExists.
func (s *SQLDB) InsertIfNew(ctx context.Context, obs *models.Observation) (InsertOutcome, error) {
	exists, err := s.Exists(ctx, obs.Location, obs.Date)
	if err != nil {
		return 0, err
	}
	if exists {
		return OutcomeExists, nil
	}

	var id int64
	err = s.db.QueryRowContext(ctx, s.q(insertQuery),
		obs.Location,
		obs.Region,
		obs.Country,
		obs.Condition,
		obs.TemperatureC,
		obs.WindSpeedKph,
		obs.PrecipitationMm,
		obs.Date,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return OutcomeExists, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error inserting observation: %w", err)
	}

	obs.ID = id
	return OutcomeInserted, nil
}

func (s *SQLDB) ListAll(ctx context.Context) ([]models.Observation, error) {
	observations := []models.Observation{}
	err := s.each(ctx, func(o models.Observation) error {
		observations = append(observations, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return observations, nil
}

// each streams every row in id order to fn.
func (s *SQLDB) each(ctx context.Context, fn func(models.Observation) error) error {
	rows, err := s.db.QueryContext(ctx, s.q(listQuery))
	if err != nil {
		return fmt.Errorf("error listing observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(
			&o.ID,
			&o.Location,
			&o.Region,
			&o.Country,
			&o.Condition,
			&o.TemperatureC,
			&o.WindSpeedKph,
			&o.PrecipitationMm,
			&o.Date,
		); err != nil {
			return fmt.Errorf("error scanning observation: %w", err)
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating observations: %w", err)
	}
	return nil
}

func (s *SQLDB) DeleteByID(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.q(deleteQuery), id); err != nil {
		return fmt.Errorf("error deleting observation %d: %w", id, err)
	}
	return nil
}

func (s *SQLDB) UpdateCondition(ctx context.Context, id int64, condition string) error {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(existsByIDQuery), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("error looking up observation %d: %w", id, err)
	}

	if _, err := s.db.ExecContext(ctx, s.q(updateConditionQuery), condition, id); err != nil {
		return fmt.Errorf("error updating observation %d: %w", id, err)
	}
	return nil
}

func (s *SQLDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}
