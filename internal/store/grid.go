package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/orcamet/riskengine/internal/models"
)

func (s *Store) CreateGridRun(run *models.GridRun) error {
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	run.GeneratedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO grid_runs (run_uid, forecast_date, status, lat_min, lat_max, lon_min, lon_max,
			resolution, grid_points, provider, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunUID, run.ForecastDate.Format(dateFormat), run.Status, run.LatMin, run.LatMax,
		run.LonMin, run.LonMax, run.Resolution, run.GridPoints, run.Provider, run.GeneratedAt)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

// InsertGridPointHours bulk-inserts point records in bounded batches so a
// nationwide sweep never builds one unbounded write.
func (s *Store) InsertGridPointHours(points []models.GridPointHour, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 5000
	}
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := s.insertGridBatch(points[start:end]); err != nil {
			return fmt.Errorf("insert batch at %d: %w", start, err)
		}
	}
	return nil
}

func (s *Store) insertGridBatch(points []models.GridPointHour) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO grid_point_hours (run_id, latitude, longitude, timestamp,
			wind_speed, wind_gusts, precipitation, temperature, risk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.RunID, p.Latitude, p.Longitude, p.Timestamp.UTC(),
			p.WindSpeed, p.WindGusts, p.Precipitation, p.Temperature, p.Risk); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CompleteGridRun marks the sweep successful with its final counters and
// deletes any previously successful sweep for the same date.
func (s *Store) CompleteGridRun(run *models.GridRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM grid_runs
		WHERE forecast_date = ? AND status = ? AND id != ?
	`, run.ForecastDate.Format(dateFormat), models.RunSuccess, run.ID); err != nil {
		return fmt.Errorf("supersede prior grid runs: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE grid_runs
		SET status = ?, failed_points = ?, num_hours = ?
		WHERE id = ?
	`, models.RunSuccess, run.FailedPoints, run.NumHours, run.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	run.Status = models.RunSuccess
	return nil
}

func (s *Store) FailGridRun(runID int64, reason string) error {
	_, err := s.db.Exec(`
		UPDATE grid_runs SET status = ?, error_message = ? WHERE id = ?
	`, models.RunFailed, reason, runID)
	return err
}

func (s *Store) GetGridRun(id int64) (*models.GridRun, error) {
	row := s.db.QueryRow(`
		SELECT id, run_uid, forecast_date, status, lat_min, lat_max, lon_min, lon_max,
			resolution, grid_points, failed_points, num_hours, provider, error_message, generated_at
		FROM grid_runs WHERE id = ?
	`, id)

	var run models.GridRun
	var dateStr string
	err := row.Scan(&run.ID, &run.RunUID, &dateStr, &run.Status, &run.LatMin, &run.LatMax,
		&run.LonMin, &run.LonMax, &run.Resolution, &run.GridPoints, &run.FailedPoints,
		&run.NumHours, &run.Provider, &run.ErrorMessage, &run.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(dateFormat, dateStr); err == nil {
		run.ForecastDate = t
	}
	return &run, nil
}

// GetGridPointHours returns a sweep's point records ordered by latitude,
// longitude, then timestamp.
func (s *Store) GetGridPointHours(runID int64) ([]models.GridPointHour, error) {
	rows, err := s.db.Query(`
		SELECT run_id, latitude, longitude, timestamp, wind_speed, wind_gusts,
			precipitation, temperature, risk
		FROM grid_point_hours
		WHERE run_id = ?
		ORDER BY latitude, longitude, timestamp
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.GridPointHour
	for rows.Next() {
		var p models.GridPointHour
		if err := rows.Scan(&p.RunID, &p.Latitude, &p.Longitude, &p.Timestamp, &p.WindSpeed,
			&p.WindGusts, &p.Precipitation, &p.Temperature, &p.Risk); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) CountGridPointHours(runID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM grid_point_hours WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}
