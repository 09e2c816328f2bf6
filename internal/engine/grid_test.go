package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/orcamet/riskengine/internal/models"
	"github.com/orcamet/riskengine/internal/provider"
)

func TestLattice(t *testing.T) {
	tests := []struct {
		name                           string
		latMin, latMax, lonMin, lonMax float64
		resolution                     float64
		want                           int
	}{
		{"2x2 degrees at 1 degree", 50, 52, 0, 2, 1.0, 9},
		{"single point", 51, 51, -1, -1, 0.5, 1},
		{"half degree square", 50, 51, 0, 1, 0.5, 9},
		{"span not a multiple of step", 50, 51.8, 0, 1, 0.5, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := Lattice(tt.latMin, tt.latMax, tt.lonMin, tt.lonMax, tt.resolution)
			if len(points) != tt.want {
				t.Errorf("len(points) = %d, want %d", len(points), tt.want)
			}
			if len(points) > 0 {
				if first := points[0]; first[0] != tt.latMin || first[1] != tt.lonMin {
					t.Errorf("first point = %v, want south-west corner", first)
				}
			}
		})
	}
}

func TestLattice_InexactStepKeepsBoundary(t *testing.T) {
	// 0.1 accumulates binary float error across steps. The north-east
	// corner must still be reached.
	points := Lattice(50, 50.5, 0, 0.5, 0.1)
	if len(points) != 36 {
		t.Fatalf("len(points) = %d, want 36", len(points))
	}
	last := points[len(points)-1]
	if last[0] > 50.5+1e-6 || last[1] > 0.5+1e-6 {
		t.Errorf("last point %v overshoots the bounding box", last)
	}
}

func TestRunGrid_Success(t *testing.T) {
	eng, st, _ := newTestEngine(t, &fakeFetcher{})
	cfg := GridConfig{
		LatMin: 50, LatMax: 51, LonMin: 0, LonMax: 1,
		Resolution: 1.0, Days: 1, Provider: "ecmwf",
		Thresholds: models.DefaultThresholds(), BatchSize: 10,
	}

	run, err := eng.RunGrid(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunGrid: %v", err)
	}
	if run.Status != models.RunSuccess {
		t.Fatalf("status = %s, want success", run.Status)
	}
	if run.GridPoints != 4 || run.FailedPoints != 0 || run.NumHours != 24 {
		t.Errorf("run = %+v, want 4 points, 0 failed, 24 hours", run)
	}

	count, err := st.CountGridPointHours(run.ID)
	if err != nil {
		t.Fatalf("CountGridPointHours: %v", err)
	}
	if count != 4*24 {
		t.Errorf("stored %d records, want %d", count, 4*24)
	}
}

func TestRunGrid_RoundsStoredValues(t *testing.T) {
	// The fake serves wind at 5.1234 m/s; stored records carry two decimals.
	eng, st, _ := newTestEngine(t, &fakeFetcher{})
	cfg := GridConfig{
		LatMin: 50, LatMax: 50, LonMin: 0, LonMax: 0,
		Resolution: 1.0, Days: 1, Provider: "gfs",
		Thresholds: models.DefaultThresholds(),
	}

	run, err := eng.RunGrid(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunGrid: %v", err)
	}

	points, err := st.GetGridPointHours(run.ID)
	if err != nil {
		t.Fatalf("GetGridPointHours: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("no point records stored")
	}
	if points[0].WindSpeed != 5.12 {
		t.Errorf("stored wind = %g, want 5.12", points[0].WindSpeed)
	}
}

func TestRunGrid_CountsPointFailures(t *testing.T) {
	fetcher := &fakeFetcher{failLat: 51.0}
	eng, _, _ := newTestEngine(t, fetcher)
	cfg := GridConfig{
		LatMin: 50, LatMax: 51, LonMin: 0, LonMax: 1,
		Resolution: 1.0, Days: 1, Provider: "ecmwf",
		Thresholds: models.DefaultThresholds(),
	}

	run, err := eng.RunGrid(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunGrid: %v", err)
	}
	if run.Status != models.RunSuccess {
		t.Fatalf("status = %s, want success with partial coverage", run.Status)
	}
	// Two of four lattice points sit at the failing latitude.
	if run.FailedPoints != 2 {
		t.Errorf("FailedPoints = %d, want 2", run.FailedPoints)
	}
	if run.NumHours != 24 {
		t.Errorf("NumHours = %d, want 24 from the surviving points", run.NumHours)
	}
}

func TestRunGrid_AllPointsFail(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"ecmwf": errors.New("HTTP 502")}}
	eng, st, _ := newTestEngine(t, fetcher)
	cfg := GridConfig{
		LatMin: 50, LatMax: 51, LonMin: 0, LonMax: 1,
		Resolution: 1.0, Days: 1, Provider: "ecmwf",
		Thresholds: models.DefaultThresholds(),
	}

	run, err := eng.RunGrid(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunGrid: %v", err)
	}
	if run.Status != models.RunFailed {
		t.Fatalf("status = %s, want failed", run.Status)
	}
	if run.FailedPoints != 4 {
		t.Errorf("FailedPoints = %d, want 4", run.FailedPoints)
	}

	got, err := st.GetGridRun(run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetGridRun: %+v err=%v", got, err)
	}
	if got.ErrorMessage.String != "no data fetched: all grid points failed" {
		t.Errorf("ErrorMessage = %q", got.ErrorMessage.String)
	}
}

func TestRunGrid_UnknownProvider(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeFetcher{})
	cfg := DefaultGridConfig()
	cfg.Provider = "arpege"

	if _, err := eng.RunGrid(context.Background(), cfg); !errors.Is(err, provider.ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestRunGrid_RejectsBadResolution(t *testing.T) {
	eng, _, _ := newTestEngine(t, &fakeFetcher{})

	for _, resolution := range []float64{0, -0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		cfg := DefaultGridConfig()
		cfg.Resolution = resolution
		if _, err := eng.RunGrid(context.Background(), cfg); err == nil {
			t.Errorf("RunGrid accepted resolution %g", resolution)
		}
	}
}

func TestDefaultGridConfig(t *testing.T) {
	cfg := DefaultGridConfig()
	if cfg.Resolution != 0.5 || cfg.Days != 3 || cfg.Provider != "ecmwf" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.LatMin >= cfg.LatMax || cfg.LonMin >= cfg.LonMax {
		t.Errorf("bounding box inverted: %+v", cfg)
	}
}
