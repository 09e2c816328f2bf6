package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/orcamet/riskengine/internal/ensemble"
	"github.com/orcamet/riskengine/internal/metrics"
	"github.com/orcamet/riskengine/internal/models"
	"github.com/orcamet/riskengine/internal/provider"
	"github.com/orcamet/riskengine/internal/risk"
)

// UK bounding box, covering mainland GB and Northern Ireland.
const (
	ukLatMin = 49.9
	ukLatMax = 58.7
	ukLonMin = -7.6
	ukLonMax = 1.8
)

// GridConfig describes one spatial sweep. A single provider per sweep
// keeps total external calls bounded; multi-provider grids are
// intentionally unsupported.
type GridConfig struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
	Resolution     float64
	Days           int
	Provider       string
	Thresholds     models.ThresholdProfile
	BatchSize      int
}

// DefaultGridConfig is a 0.5° UK-wide sweep: ~55 km spacing, 3 days, using
// the highest-weighted provider.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		LatMin:     ukLatMin,
		LatMax:     ukLatMax,
		LonMin:     ukLonMin,
		LonMax:     ukLonMax,
		Resolution: 0.5,
		Days:       3,
		Provider:   "ecmwf",
		Thresholds: models.DefaultThresholds(),
		BatchSize:  5000,
	}
}

// Lattice enumerates the sweep's points row-major from the south-west
// corner, inclusive of both boundary edges: a 2°×2° box at 1° resolution
// yields 9 points.
func Lattice(latMin, latMax, lonMin, lonMax, resolution float64) [][2]float64 {
	// Tolerance absorbs accumulated float error so an on-lattice maximum is
	// kept, without admitting points past the boundary.
	eps := resolution * 1e-9
	var points [][2]float64
	for lat := latMin; lat <= latMax+eps; lat += resolution {
		for lon := lonMin; lon <= lonMax+eps; lon += resolution {
			points = append(points, [2]float64{lat, lon})
		}
	}
	return points
}

// RunGrid sweeps the lattice with the configured provider, scoring each
// hour at each point against the grid thresholds. Per-point failures are
// counted and skipped; the sweep fails only when no point yields any data.
// Results are persisted in bounded batches once the sweep completes.
func (e *Engine) RunGrid(ctx context.Context, cfg GridConfig) (*models.GridRun, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	pcfg, err := e.registry.Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if !(cfg.Resolution > 0) || math.IsInf(cfg.Resolution, 0) {
		return nil, fmt.Errorf("resolution must be positive and finite, got %g", cfg.Resolution)
	}
	if cfg.Days <= 0 {
		cfg.Days = 3
	}

	points := Lattice(cfg.LatMin, cfg.LatMax, cfg.LonMin, cfg.LonMax, cfg.Resolution)
	today := time.Now().UTC().Truncate(24 * time.Hour)
	end := today.AddDate(0, 0, cfg.Days-1)

	run := &models.GridRun{
		RunUID:       uuid.NewString(),
		ForecastDate: today,
		Status:       models.RunRunning,
		LatMin:       cfg.LatMin,
		LatMax:       cfg.LatMax,
		LonMin:       cfg.LonMin,
		LonMax:       cfg.LonMax,
		Resolution:   cfg.Resolution,
		GridPoints:   len(points),
		Provider:     cfg.Provider,
	}
	if err := e.store.CreateGridRun(run); err != nil {
		return nil, fmt.Errorf("create grid run: %w", err)
	}

	log.Printf("grid: sweeping %d points at %.2g° with %s, %s to %s",
		len(points), cfg.Resolution, pcfg.Label, today.Format("2006-01-02"), end.Format("2006-01-02"))

	var records []models.GridPointHour
	failed := 0
	began := time.Now()

	for idx, point := range points {
		if idx%10 == 0 {
			logProgress(idx, len(points), began)
		}
		metrics.GridSweepProgress.Set(float64(idx) / float64(len(points)))

		if err := e.limiter.Wait(ctx); err != nil {
			reason := fmt.Sprintf("sweep aborted at point %d/%d: %v", idx, len(points), err)
			e.store.FailGridRun(run.ID, reason)
			run.Status = models.RunFailed
			return run, fmt.Errorf("grid sweep: %w", err)
		}

		lat, lon := point[0], point[1]
		pointCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
		series, err := e.fetcher.Fetch(pointCtx, pcfg, lat, lon, today, end)
		cancel()
		if err != nil {
			log.Printf("grid: point (%.2f, %.2f) failed: %v", lat, lon, err)
			failed++
			metrics.GridPointsProcessed.WithLabelValues("failed").Inc()
			continue
		}
		metrics.GridPointsProcessed.WithLabelValues("ok").Inc()

		// Single provider, so the combiner degenerates to pass-through
		// with every spread at 0.
		for _, hour := range ensemble.Combine([]provider.Series{series}, ensemble.EqualWeights) {
			hr := risk.Score(hour, cfg.Thresholds)
			records = append(records, models.GridPointHour{
				RunID:         run.ID,
				Latitude:      lat,
				Longitude:     lon,
				Timestamp:     hr.Timestamp,
				WindSpeed:     round2(hr.WindSpeed),
				WindGusts:     round2(hr.WindGusts),
				Precipitation: round2(hr.Precipitation),
				Temperature:   round2(hr.Temperature),
				Risk:          round2(hr.Risk),
			})
		}
	}
	metrics.GridSweepProgress.Set(1)

	if len(records) == 0 {
		reason := "no data fetched: all grid points failed"
		if err := e.store.FailGridRun(run.ID, reason); err != nil {
			log.Printf("grid: mark run failed: %v", err)
		}
		run.Status = models.RunFailed
		run.FailedPoints = failed
		log.Printf("grid: %s", reason)
		return run, nil
	}

	log.Printf("grid: storing %d point records", len(records))
	if err := e.store.InsertGridPointHours(records, cfg.BatchSize); err != nil {
		if ferr := e.store.FailGridRun(run.ID, err.Error()); ferr != nil {
			log.Printf("grid: mark run failed: %v", ferr)
		}
		run.Status = models.RunFailed
		return run, fmt.Errorf("store grid records: %w", err)
	}

	run.FailedPoints = failed
	run.NumHours = len(records) / maxInt(len(points)-failed, 1)
	if err := e.store.CompleteGridRun(run); err != nil {
		if ferr := e.store.FailGridRun(run.ID, err.Error()); ferr != nil {
			log.Printf("grid: mark run failed: %v", ferr)
		}
		run.Status = models.RunFailed
		return run, fmt.Errorf("complete grid run: %w", err)
	}

	log.Printf("grid: complete: %d records (%d points, %d failed) in %s",
		len(records), len(points)-failed, failed, time.Since(began).Round(time.Second))
	metrics.HourlyRecordsStored.Add(float64(len(records)))
	return run, nil
}

func logProgress(idx, total int, began time.Time) {
	if idx == 0 {
		return
	}
	elapsed := time.Since(began).Seconds()
	pointsPerSec := float64(idx) / elapsed
	eta := float64(total-idx) / pointsPerSec
	log.Printf("grid: [%d/%d] %.1f pts/s, ETA %.0fs", idx, total, pointsPerSec, eta)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
