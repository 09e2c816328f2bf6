package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS sites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    elevation INTEGER NOT NULL DEFAULT 0,
    exposure TEXT NOT NULL DEFAULT 'urban',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    job_complete BOOLEAN NOT NULL DEFAULT FALSE,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS threshold_profiles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    wind_mean_caution REAL NOT NULL,
    wind_mean_cancel REAL NOT NULL,
    gust_caution REAL NOT NULL,
    gust_cancel REAL NOT NULL,
    precip_caution REAL NOT NULL,
    precip_cancel REAL NOT NULL,
    temp_min_caution REAL NOT NULL,
    temp_min_cancel REAL NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS forecast_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_uid TEXT NOT NULL,
    site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    forecast_date DATE NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    peak_risk REAL,
    peak_wind REAL,
    peak_gust REAL,
    peak_precip REAL,
    min_temp REAL,
    recommendation TEXT,
    models_used TEXT NOT NULL DEFAULT '',
    error_message TEXT,
    generated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hourly_risk (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
    timestamp DATETIME NOT NULL,
    wind_speed REAL NOT NULL,
    wind_gusts REAL NOT NULL,
    precipitation REAL NOT NULL,
    temperature REAL NOT NULL,
    wind_spread REAL NOT NULL DEFAULT 0,
    gust_spread REAL NOT NULL DEFAULT 0,
    precip_spread REAL NOT NULL DEFAULT 0,
    temp_spread REAL NOT NULL DEFAULT 0,
    risk REAL NOT NULL,
    UNIQUE(run_id, timestamp)
);

CREATE TABLE IF NOT EXISTS grid_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_uid TEXT NOT NULL,
    forecast_date DATE NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    lat_min REAL NOT NULL,
    lat_max REAL NOT NULL,
    lon_min REAL NOT NULL,
    lon_max REAL NOT NULL,
    resolution REAL NOT NULL,
    grid_points INTEGER NOT NULL DEFAULT 0,
    failed_points INTEGER NOT NULL DEFAULT 0,
    num_hours INTEGER NOT NULL DEFAULT 0,
    provider TEXT NOT NULL,
    error_message TEXT,
    generated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS grid_point_hours (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES grid_runs(id) ON DELETE CASCADE,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    timestamp DATETIME NOT NULL,
    wind_speed REAL NOT NULL,
    wind_gusts REAL NOT NULL,
    precipitation REAL NOT NULL,
    temperature REAL NOT NULL,
    risk REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_site_date ON forecast_runs(site_id, forecast_date);
CREATE INDEX IF NOT EXISTS idx_runs_status ON forecast_runs(status);
CREATE INDEX IF NOT EXISTS idx_hourly_run ON hourly_risk(run_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_grid_runs_date ON grid_runs(forecast_date);
CREATE INDEX IF NOT EXISTS idx_grid_hours_run ON grid_point_hours(run_id);
CREATE INDEX IF NOT EXISTS idx_thresholds_site ON threshold_profiles(site_id, is_active);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
