package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/orcamet/riskengine/internal/metrics"
	"github.com/orcamet/riskengine/internal/models"
)

const dateFormat = "2006-01-02"

// CreateForecastRun inserts a new run in its initial state and fills in
// the generated ID.
func (s *Store) CreateForecastRun(run *models.ForecastRun) error {
	if run.Status == "" {
		run.Status = models.RunPending
	}
	run.GeneratedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO forecast_runs (run_uid, site_id, forecast_date, status, models_used, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunUID, run.SiteID, run.ForecastDate.Format(dateFormat), run.Status, run.ModelsUsed, run.GeneratedAt)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

func (s *Store) MarkRunRunning(runID int64) error {
	_, err := s.db.Exec(`UPDATE forecast_runs SET status = ? WHERE id = ?`, models.RunRunning, runID)
	return err
}

// CompleteForecastRun marks a run successful, stores its daily summary and
// hourly rows, and deletes any previously successful run for the same site
// and date, all in one transaction. Either the whole run lands or none of
// it does; a partial hourly set is never visible as success.
func (s *Store) CompleteForecastRun(run *models.ForecastRun, summary models.DailySummary, hours []models.HourlyRisk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	date := run.ForecastDate.Format(dateFormat)

	// Replace, not merge: prior successful runs for the same day go away
	// along with their hourly children.
	if _, err := tx.Exec(`
		DELETE FROM forecast_runs
		WHERE site_id = ? AND forecast_date = ? AND status = ? AND id != ?
	`, run.SiteID, date, models.RunSuccess, run.ID); err != nil {
		return fmt.Errorf("supersede prior runs: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE forecast_runs
		SET status = ?, peak_risk = ?, peak_wind = ?, peak_gust = ?, peak_precip = ?,
			min_temp = ?, recommendation = ?, generated_at = ?
		WHERE id = ?
	`, models.RunSuccess, summary.PeakRisk, summary.PeakWind, summary.PeakGust, summary.PeakPrecip,
		summary.MinTemp, string(summary.Recommendation), time.Now().UTC(), run.ID); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO hourly_risk (run_id, timestamp, wind_speed, wind_gusts, precipitation, temperature,
			wind_spread, gust_spread, precip_spread, temp_spread, risk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range hours {
		if _, err := stmt.Exec(run.ID, h.Timestamp.UTC(), h.WindSpeed, h.WindGusts, h.Precipitation,
			h.Temperature, h.WindSpread, h.GustSpread, h.PrecipSpread, h.TempSpread, h.Risk); err != nil {
			return fmt.Errorf("insert hourly row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	run.Status = models.RunSuccess
	metrics.HourlyRecordsStored.Add(float64(len(hours)))
	return nil
}

// FailForecastRun marks a run failed with a captured reason. A failed run
// record lets operators distinguish "no data" from "never ran".
func (s *Store) FailForecastRun(runID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE forecast_runs SET status = ?, error_message = ? WHERE id = ?
	`, models.RunFailed, reason, runID)
	return err
}

func (s *Store) GetForecastRun(id int64) (*models.ForecastRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_uid, site_id, forecast_date, status, peak_risk, peak_wind, peak_gust,
			peak_precip, min_temp, recommendation, models_used, error_message, generated_at
		FROM forecast_runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// GetRunsForSite returns the site's runs with forecast dates on or after
// from, newest generation first within a date.
func (s *Store) GetRunsForSite(siteID int64, from time.Time) ([]models.ForecastRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_uid, site_id, forecast_date, status, peak_risk, peak_wind, peak_gust,
			peak_precip, min_temp, recommendation, models_used, error_message, generated_at
		FROM forecast_runs
		WHERE site_id = ? AND forecast_date >= ?
		ORDER BY forecast_date ASC, generated_at DESC
	`, siteID, from.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ForecastRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *Store) GetHourlyRisk(runID int64) ([]models.HourlyRisk, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, wind_speed, wind_gusts, precipitation, temperature,
			wind_spread, gust_spread, precip_spread, temp_spread, risk
		FROM hourly_risk
		WHERE run_id = ?
		ORDER BY timestamp ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []models.HourlyRisk
	for rows.Next() {
		var h models.HourlyRisk
		if err := rows.Scan(&h.Timestamp, &h.WindSpeed, &h.WindGusts, &h.Precipitation, &h.Temperature,
			&h.WindSpread, &h.GustSpread, &h.PrecipSpread, &h.TempSpread, &h.Risk); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

// CountRunsOlderThan supports cleanup dry runs.
func (s *Store) CountRunsOlderThan(cutoff time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM forecast_runs WHERE generated_at < ?`, cutoff.UTC()).Scan(&count)
	return count, err
}

// DeleteRunsOlderThan removes old runs; hourly children go with them via
// the cascade.
func (s *Store) DeleteRunsOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM forecast_runs WHERE generated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.ForecastRun, error) {
	var run models.ForecastRun
	var dateStr string
	err := row.Scan(&run.ID, &run.RunUID, &run.SiteID, &dateStr, &run.Status, &run.PeakRisk,
		&run.PeakWind, &run.PeakGust, &run.PeakPrecip, &run.MinTemp, &run.Recommendation,
		&run.ModelsUsed, &run.ErrorMessage, &run.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(dateFormat, dateStr); err == nil {
		run.ForecastDate = t
	}
	return &run, nil
}
