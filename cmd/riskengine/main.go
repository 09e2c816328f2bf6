package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/orcamet/riskengine/internal/briefing"
	"github.com/orcamet/riskengine/internal/engine"
	"github.com/orcamet/riskengine/internal/models"
	"github.com/orcamet/riskengine/internal/provider"
	"github.com/orcamet/riskengine/internal/store"
)

var cli struct {
	DB          string  `help:"Path to SQLite database." default:"data/riskengine.db" env:"RISKENGINE_DB"`
	MetricsAddr string  `help:"Expose Prometheus metrics on this address (e.g. :9091)." env:"RISKENGINE_METRICS_ADDR"`
	Workers     int     `help:"Concurrent site pipelines." default:"4"`
	RPS         float64 `help:"Provider requests per second across all workers." default:"10"`

	Forecast forecastCmd `cmd:"" help:"Generate forecasts for active sites."`
	Grid     gridCmd     `cmd:"" help:"Generate the UK-wide risk grid for the map heatmap."`
	Cleanup  cleanupCmd  `cmd:"" help:"Delete forecast runs older than N days."`
	AddSite  addSiteCmd  `cmd:"" help:"Register a work site."`
}

type cmdContext struct {
	ctx    context.Context
	store  *store.Store
	engine *engine.Engine
}

type forecastCmd struct {
	Site      int64    `help:"Generate for a specific site ID only."`
	Days      int      `help:"Number of forecast days." default:"3"`
	Providers []string `help:"Provider names to combine." default:"ecmwf,ukmo,icon,gfs,gem"`
	Brief     bool     `help:"Print an operator briefing per site (requires OPENAI_API_KEY)."`
}

func (c *forecastCmd) Run(cc *cmdContext) error {
	if c.Site != 0 {
		return c.runSingle(cc)
	}

	log.Println("generating forecasts for all active sites")
	summary, err := cc.engine.RunAllActive(cc.ctx, c.Providers, c.Days)
	if err != nil {
		return err
	}
	fmt.Printf("complete: %d sites, %d successful, %d failed\n", summary.Sites, summary.Succeeded, summary.Failed)
	return nil
}

func (c *forecastCmd) runSingle(cc *cmdContext) error {
	site, err := cc.store.GetSite(c.Site)
	if err != nil {
		return err
	}
	if site == nil {
		return fmt.Errorf("site %d not found", c.Site)
	}

	thresholds, found, err := cc.store.GetActiveThresholds(site.ID)
	if err != nil {
		return err
	}
	if !found {
		thresholds = models.DefaultThresholds()
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, c.Days-1)

	fmt.Printf("generating forecast for: %s\n", site.Name)
	runs, err := cc.engine.RunSite(cc.ctx, *site, thresholds, c.Providers, start, end)
	if err != nil {
		return err
	}

	var summaries []models.DailySummary
	for _, run := range runs {
		if run.Status == models.RunSuccess {
			fmt.Printf("  %s: %s (peak risk %.1f%%) [%s]\n",
				run.ForecastDate.Format("2006-01-02"), run.Recommendation.String, run.PeakRisk.Float64, run.Status)
			summaries = append(summaries, summaryFromRun(run))
		} else {
			fmt.Printf("  %s: %s: %s\n",
				run.ForecastDate.Format("2006-01-02"), run.Status, run.ErrorMessage.String)
		}
	}

	if c.Brief && len(summaries) > 0 {
		gen, err := briefing.NewGenerator()
		if err != nil {
			return err
		}
		text, err := gen.Generate(cc.ctx, site.Name, summaries)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", text)
	}
	return nil
}

func summaryFromRun(run models.ForecastRun) models.DailySummary {
	return models.DailySummary{
		Date:           run.ForecastDate,
		PeakRisk:       run.PeakRisk.Float64,
		PeakWind:       run.PeakWind.Float64,
		PeakGust:       run.PeakGust.Float64,
		PeakPrecip:     run.PeakPrecip.Float64,
		MinTemp:        run.MinTemp.Float64,
		Recommendation: models.Recommendation(run.Recommendation.String),
	}
}

type gridCmd struct {
	Resolution float64 `help:"Grid spacing in degrees (0.5 ≈ 55km)." default:"0.5"`
	Days       int     `help:"Number of forecast days." default:"3"`
	Provider   string  `help:"Single model for the sweep; one model keeps API calls manageable." default:"ecmwf"`
}

func (c *gridCmd) Run(cc *cmdContext) error {
	cfg := engine.DefaultGridConfig()
	cfg.Resolution = c.Resolution
	cfg.Days = c.Days
	cfg.Provider = c.Provider

	run, err := cc.engine.RunGrid(cc.ctx, cfg)
	if err != nil {
		return err
	}
	if run.Status != models.RunSuccess {
		return fmt.Errorf("grid sweep failed: %s", run.ErrorMessage.String)
	}
	fmt.Printf("grid run %s: %d points, %d failed, %d hours\n",
		run.RunUID, run.GridPoints, run.FailedPoints, run.NumHours)
	return nil
}

type cleanupCmd struct {
	Days   int  `help:"Delete forecast runs older than this many days." default:"30"`
	DryRun bool `help:"Show what would be deleted without deleting."`
}

func (c *cleanupCmd) Run(cc *cmdContext) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.Days)

	if c.DryRun {
		count, err := cc.store.CountRunsOlderThan(cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("would delete %d forecast runs older than %d days\n", count, c.Days)
		return nil
	}

	deleted, err := cc.store.DeleteRunsOlderThan(cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d forecast runs older than %d days\n", deleted, c.Days)
	return nil
}

type addSiteCmd struct {
	Name      string  `arg:"" help:"Site name."`
	Lat       float64 `required:"" help:"Latitude."`
	Lon       float64 `required:"" help:"Longitude."`
	Elevation int     `help:"Elevation in metres above sea level."`
	Exposure  string  `help:"Site exposure category." default:"urban" enum:"urban,coastal,highland,rural"`
}

func (c *addSiteCmd) Run(cc *cmdContext) error {
	id, err := cc.store.CreateSite(models.Site{
		Name:      c.Name,
		Latitude:  c.Lat,
		Longitude: c.Lon,
		Elevation: c.Elevation,
		Exposure:  c.Exposure,
		Active:    true,
	})
	if err != nil {
		return err
	}
	if err := cc.store.SetThresholds(id, models.DefaultThresholds()); err != nil {
		return err
	}
	fmt.Printf("site %d created: %s (%.4f, %.4f)\n", id, c.Name, c.Lat, c.Lon)
	return nil
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("riskengine"),
		kong.Description("Ensemble forecast and risk engine for rope-access work sites."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	if dir := filepath.Dir(cli.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create database directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA foreign_keys=ON")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if cli.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("metrics listening on %s", cli.MetricsAddr)
			if err := http.ListenAndServe(cli.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := engine.New(engine.Config{
		Registry:          provider.DefaultRegistry(),
		Fetcher:           provider.NewClient(),
		Store:             st,
		Workers:           cli.Workers,
		RequestsPerSecond: cli.RPS,
	})

	kctx.FatalIfErrorf(kctx.Run(&cmdContext{ctx: ctx, store: st, engine: eng}))
}
