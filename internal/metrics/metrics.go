package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskengine_provider_calls_total",
			Help: "Total forecast provider API calls",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskengine_provider_latency_seconds",
			Help:    "Forecast provider API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ForecastRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskengine_forecast_runs_total",
			Help: "Total site forecast runs by terminal status",
		},
		[]string{"status"},
	)

	GridPointsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskengine_grid_points_total",
			Help: "Total grid sweep points attempted",
		},
		[]string{"status"},
	)

	GridSweepProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskengine_grid_sweep_progress_ratio",
			Help: "Fraction of the current grid sweep completed",
		},
	)

	HourlyRecordsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskengine_hourly_records_stored_total",
			Help: "Total hourly risk records persisted",
		},
	)
)
