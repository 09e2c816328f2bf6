package store

import (
	"database/sql"

	"github.com/orcamet/riskengine/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSite(site models.Site) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO sites (name, latitude, longitude, elevation, exposure, active, job_complete)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, site.Name, site.Latitude, site.Longitude, site.Elevation, site.Exposure, site.Active, site.JobComplete)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetSite(id int64) (*models.Site, error) {
	row := s.db.QueryRow(`
		SELECT id, name, latitude, longitude, elevation, exposure, active, job_complete, created_at
		FROM sites WHERE id = ?
	`, id)

	var site models.Site
	err := row.Scan(&site.ID, &site.Name, &site.Latitude, &site.Longitude, &site.Elevation,
		&site.Exposure, &site.Active, &site.JobComplete, &site.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Store) GetActiveSites() ([]models.Site, error) {
	rows, err := s.db.Query(`
		SELECT id, name, latitude, longitude, elevation, exposure, active, job_complete, created_at
		FROM sites
		WHERE active = TRUE AND job_complete = FALSE
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.ID, &site.Name, &site.Latitude, &site.Longitude, &site.Elevation,
			&site.Exposure, &site.Active, &site.JobComplete, &site.CreatedAt); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// SetThresholds archives any active profile for the site and installs the
// given one. Exactly one profile is active per site at a time.
func (s *Store) SetThresholds(siteID int64, t models.ThresholdProfile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE threshold_profiles SET is_active = FALSE WHERE site_id = ?`, siteID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO threshold_profiles (site_id, is_active, wind_mean_caution, wind_mean_cancel,
			gust_caution, gust_cancel, precip_caution, precip_cancel, temp_min_caution, temp_min_cancel)
		VALUES (?, TRUE, ?, ?, ?, ?, ?, ?, ?, ?)
	`, siteID, t.WindMeanCaution, t.WindMeanCancel, t.GustCaution, t.GustCancel,
		t.PrecipCaution, t.PrecipCancel, t.TempMinCaution, t.TempMinCancel); err != nil {
		return err
	}

	return tx.Commit()
}

// GetActiveThresholds returns the site's active profile, or ok=false when
// none is configured and the caller should fall back to defaults.
func (s *Store) GetActiveThresholds(siteID int64) (models.ThresholdProfile, bool, error) {
	row := s.db.QueryRow(`
		SELECT wind_mean_caution, wind_mean_cancel, gust_caution, gust_cancel,
			precip_caution, precip_cancel, temp_min_caution, temp_min_cancel
		FROM threshold_profiles
		WHERE site_id = ? AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, siteID)

	var t models.ThresholdProfile
	err := row.Scan(&t.WindMeanCaution, &t.WindMeanCancel, &t.GustCaution, &t.GustCancel,
		&t.PrecipCaution, &t.PrecipCancel, &t.TempMinCaution, &t.TempMinCancel)
	if err == sql.ErrNoRows {
		return models.ThresholdProfile{}, false, nil
	}
	if err != nil {
		return models.ThresholdProfile{}, false, err
	}
	return t, true, nil
}
