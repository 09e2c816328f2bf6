// Package engine drives the forecast pipeline: provider fetches, ensemble
// combination, risk scoring, daily aggregation and persistence, for single
// sites and for grid sweeps. The engine itself is invoked synchronously;
// when to run is the caller's concern.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/orcamet/riskengine/internal/ensemble"
	"github.com/orcamet/riskengine/internal/metrics"
	"github.com/orcamet/riskengine/internal/models"
	"github.com/orcamet/riskengine/internal/provider"
	"github.com/orcamet/riskengine/internal/risk"
	"github.com/orcamet/riskengine/internal/store"
)

// Fetcher fetches one provider's hourly series. Tests substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, cfg provider.Config, lat, lon float64, start, end time.Time) (provider.Series, error)
}

type Config struct {
	Registry provider.Registry
	Fetcher  Fetcher
	Store    *store.Store

	// Workers bounds concurrent site pipelines in RunAllActive.
	Workers int
	// RequestsPerSecond caps provider calls across all in-flight work.
	RequestsPerSecond float64
	// RunTimeout bounds one target's provider fetches so a slow provider
	// cannot stall a whole batch.
	RunTimeout time.Duration
}

type Engine struct {
	registry   provider.Registry
	fetcher    Fetcher
	store      *store.Store
	limiter    *rate.Limiter
	workers    int
	runTimeout time.Duration
}

func New(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Engine{
		registry:   cfg.Registry,
		fetcher:    cfg.Fetcher,
		store:      cfg.Store,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		workers:    cfg.Workers,
		runTimeout: cfg.RunTimeout,
	}
}

// attempt is the outcome of one provider fetch. Attempts are collected and
// the successes filtered out explicitly; a failed provider only reduces
// ensemble membership.
type attempt struct {
	cfg    provider.Config
	series provider.Series
	err    error
}

// RunSite executes the full pipeline for one site over [start, end]
// (inclusive dates), producing one run record per day. Validation problems
// (unknown provider, bad thresholds) are returned before any run record or
// network call is made. After that, every day gets a terminal run record:
// success with its hourly set stored atomically, or failed with a reason.
func (e *Engine) RunSite(ctx context.Context, site models.Site, thresholds models.ThresholdProfile, providerNames []string, start, end time.Time) ([]models.ForecastRun, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if len(providerNames) == 0 {
		return nil, fmt.Errorf("no providers requested")
	}
	configs := make([]provider.Config, 0, len(providerNames))
	for _, name := range providerNames {
		cfg, err := e.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	modelsUsed := strings.Join(providerNames, ",")

	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)

	var runs []models.ForecastRun
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		run := models.ForecastRun{
			RunUID:       uuid.NewString(),
			SiteID:       site.ID,
			ForecastDate: d,
			Status:       models.RunPending,
			ModelsUsed:   modelsUsed,
		}
		if err := e.store.CreateForecastRun(&run); err != nil {
			// Runs already created for earlier days must not dangle in
			// pending; give them a terminal record before bailing out.
			e.failAll(runs, fmt.Sprintf("create run for %s: %v", d.Format("2006-01-02"), err))
			return nil, fmt.Errorf("create run: %w", err)
		}
		runs = append(runs, run)
	}

	for i := range runs {
		if err := e.store.MarkRunRunning(runs[i].ID); err != nil {
			log.Printf("engine: mark running: %v", err)
		}
		runs[i].Status = models.RunRunning
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	attempts := make([]attempt, 0, len(configs))
	for _, cfg := range configs {
		if err := e.limiter.Wait(fetchCtx); err != nil {
			attempts = append(attempts, attempt{cfg: cfg, err: err})
			continue
		}
		series, err := e.fetcher.Fetch(fetchCtx, cfg, site.Latitude, site.Longitude, start, end)
		if err != nil {
			log.Printf("engine: provider %s failed for site %s: %v", cfg.Name, site.Name, err)
		}
		attempts = append(attempts, attempt{cfg: cfg, series: series, err: err})
	}

	var succeeded []provider.Series
	var lastErr error
	for _, a := range attempts {
		if a.err != nil {
			lastErr = a.err
			continue
		}
		succeeded = append(succeeded, a.series)
	}

	if len(succeeded) == 0 {
		reason := fmt.Sprintf("all %d providers failed: %v", len(configs), lastErr)
		e.failAll(runs, reason)
		return runs, nil
	}

	combined := ensemble.Combine(succeeded, e.registry.Weight)
	scored := make([]models.HourlyRisk, 0, len(combined))
	for _, hour := range combined {
		scored = append(scored, risk.Score(hour, thresholds))
	}
	_, byDay := risk.GroupByDay(scored)

	for i := range runs {
		run := &runs[i]
		hours := byDay[run.ForecastDate.Format("2006-01-02")]
		summary, ok := risk.AggregateDay(run.ForecastDate, hours)
		if !ok {
			e.fail(run, "no forecast data for day")
			continue
		}

		if err := e.store.CompleteForecastRun(run, summary, hours); err != nil {
			e.fail(run, fmt.Sprintf("persist results: %v", err))
			continue
		}
		run.PeakRisk.Float64, run.PeakRisk.Valid = summary.PeakRisk, true
		run.Recommendation.String, run.Recommendation.Valid = string(summary.Recommendation), true
		metrics.ForecastRunsTotal.WithLabelValues(string(models.RunSuccess)).Inc()
		log.Printf("engine: site %s %s: %s (peak risk %.1f%%, %d hours)",
			site.Name, run.ForecastDate.Format("2006-01-02"), summary.Recommendation, summary.PeakRisk, len(hours))
	}

	return runs, nil
}

func (e *Engine) failAll(runs []models.ForecastRun, reason string) {
	for i := range runs {
		e.fail(&runs[i], reason)
	}
}

func (e *Engine) fail(run *models.ForecastRun, reason string) {
	if err := e.store.FailForecastRun(run.ID, reason); err != nil {
		log.Printf("engine: mark run %d failed: %v", run.ID, err)
	}
	run.Status = models.RunFailed
	run.ErrorMessage.String, run.ErrorMessage.Valid = reason, true
	metrics.ForecastRunsTotal.WithLabelValues(string(models.RunFailed)).Inc()
}

// BatchSummary tallies a RunAllActive sweep across sites.
type BatchSummary struct {
	Sites     int
	Succeeded int
	Failed    int
}

// RunAllActive runs the pipeline for every active site that still has work
// pending, fanning sites out across a bounded worker pool. Failures are
// isolated per site; the provider rate limiter is shared across workers.
func (e *Engine) RunAllActive(ctx context.Context, providerNames []string, days int) (BatchSummary, error) {
	sites, err := e.store.GetActiveSites()
	if err != nil {
		return BatchSummary{}, fmt.Errorf("load sites: %w", err)
	}
	if days <= 0 {
		days = 3
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, days-1)

	jobs := make(chan models.Site)
	var mu sync.Mutex
	summary := BatchSummary{Sites: len(sites)}

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for site := range jobs {
				ok := e.runOne(ctx, site, providerNames, start, end)
				mu.Lock()
				if ok {
					summary.Succeeded++
				} else {
					summary.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, site := range sites {
		jobs <- site
	}
	close(jobs)
	wg.Wait()

	log.Printf("engine: batch complete: %d sites, %d successful, %d failed",
		summary.Sites, summary.Succeeded, summary.Failed)
	return summary, nil
}

// runOne runs a single site inside the batch, treating the site as
// successful when at least one day's run succeeded.
func (e *Engine) runOne(ctx context.Context, site models.Site, providerNames []string, start, end time.Time) bool {
	thresholds, found, err := e.store.GetActiveThresholds(site.ID)
	if err != nil {
		log.Printf("engine: thresholds for site %s: %v", site.Name, err)
		return false
	}
	if !found {
		thresholds = models.DefaultThresholds()
	}

	runs, err := e.RunSite(ctx, site, thresholds, providerNames, start, end)
	if err != nil {
		log.Printf("engine: site %s: %v", site.Name, err)
		return false
	}
	for _, run := range runs {
		if run.Status == models.RunSuccess {
			return true
		}
	}
	return false
}
