package models

import (
	"database/sql"
	"fmt"
	"math"
	"time"
)

// Exposure categories for a work site. Coastal and highland sites
// typically carry tighter wind thresholds than urban ones.
const (
	ExposureUrban    = "urban"
	ExposureCoastal  = "coastal"
	ExposureHighland = "highland"
	ExposureRural    = "rural"
)

type Site struct {
	ID          int64
	Name        string
	Latitude    float64
	Longitude   float64
	Elevation   int
	Exposure    string
	Active      bool
	JobComplete bool
	CreatedAt   time.Time
}

// ThresholdProfile holds the caution/cancel limits per weather variable.
// Wind and gust are m/s, precipitation mm/h, temperature °C. The engine
// does not enforce that cancel is more severe than caution; callers own
// that consistency.
type ThresholdProfile struct {
	WindMeanCaution float64
	WindMeanCancel  float64
	GustCaution     float64
	GustCancel      float64
	PrecipCaution   float64
	PrecipCancel    float64
	TempMinCaution  float64
	TempMinCancel   float64
}

// DefaultThresholds returns the generic profile used when a site has no
// active profile and for grid sweeps.
func DefaultThresholds() ThresholdProfile {
	return ThresholdProfile{
		WindMeanCaution: 10.0,
		WindMeanCancel:  14.0,
		GustCaution:     15.0,
		GustCancel:      20.0,
		PrecipCaution:   0.7,
		PrecipCancel:    2.0,
		TempMinCaution:  1.0,
		TempMinCancel:   -2.0,
	}
}

// Validate rejects profiles containing non-finite values.
func (t ThresholdProfile) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"wind_mean_caution", t.WindMeanCaution},
		{"wind_mean_cancel", t.WindMeanCancel},
		{"gust_caution", t.GustCaution},
		{"gust_cancel", t.GustCancel},
		{"precip_caution", t.PrecipCaution},
		{"precip_cancel", t.PrecipCancel},
		{"temp_min_caution", t.TempMinCaution},
		{"temp_min_cancel", t.TempMinCancel},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("threshold %s is not finite", f.name)
		}
	}
	return nil
}

// EnsembleHour is one timestamp's combined forecast: the weighted mean per
// variable plus the inter-model spread (max−min among contributing
// providers) as an uncertainty indicator.
type EnsembleHour struct {
	Timestamp     time.Time
	WindSpeed     float64
	WindGusts     float64
	Precipitation float64
	Temperature   float64
	WindSpread    float64
	GustSpread    float64
	PrecipSpread  float64
	TempSpread    float64
}

// HourlyRisk is an EnsembleHour with its computed 0–100 risk score.
type HourlyRisk struct {
	EnsembleHour
	Risk float64
}

type Recommendation string

const (
	RecommendationGo      Recommendation = "GO"
	RecommendationCaution Recommendation = "CAUTION"
	RecommendationCancel  Recommendation = "CANCEL"
)

// DailySummary rolls one calendar day of hourly risk into peak statistics.
// The worst hour governs the day's recommendation.
type DailySummary struct {
	Date           time.Time
	PeakRisk       float64
	PeakWind       float64
	PeakGust       float64
	PeakPrecip     float64
	MinTemp        float64
	Recommendation Recommendation
}

type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// ForecastRun is one (site, forecast date) unit of work. At most one
// successful run is retained per site and date; re-running replaces it.
type ForecastRun struct {
	ID             int64
	RunUID         string
	SiteID         int64
	ForecastDate   time.Time
	Status         RunStatus
	PeakRisk       sql.NullFloat64
	PeakWind       sql.NullFloat64
	PeakGust       sql.NullFloat64
	PeakPrecip     sql.NullFloat64
	MinTemp        sql.NullFloat64
	Recommendation sql.NullString
	ModelsUsed     string
	ErrorMessage   sql.NullString
	GeneratedAt    time.Time
}

// GridRun is a spatial sweep of the single-provider pipeline over a
// lat/lon lattice. It owns its per-point hourly records.
type GridRun struct {
	ID           int64
	RunUID       string
	ForecastDate time.Time
	Status       RunStatus
	LatMin       float64
	LatMax       float64
	LonMin       float64
	LonMax       float64
	Resolution   float64
	GridPoints   int
	FailedPoints int
	NumHours     int
	Provider     string
	ErrorMessage sql.NullString
	GeneratedAt  time.Time
}

// GridPointHour is one hour of scored forecast at one lattice point.
type GridPointHour struct {
	RunID         int64
	Latitude      float64
	Longitude     float64
	Timestamp     time.Time
	WindSpeed     float64
	WindGusts     float64
	Precipitation float64
	Temperature   float64
	Risk          float64
}
