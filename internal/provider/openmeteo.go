package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/orcamet/riskengine/internal/httputil"
	"github.com/orcamet/riskengine/internal/metrics"
)

// openMeteoMappingVersion identifies the native-response-to-common-schema
// mapping below. Bump it whenever the requested fields or unit handling
// change.
const openMeteoMappingVersion = 2

// Neutral substitutes for missing or non-finite values. Wind, gust and
// precipitation fall back to calm/dry; temperature to a mild 10°C so a
// broken feed never trips the cold-weather thresholds.
const (
	neutralWindMS  = 0.0
	neutralGustMS  = 0.0
	neutralPrecip  = 0.0
	neutralTempC   = 10.0
	kmhPerMeterSec = 3.6
)

// Client fetches hourly series from Open-Meteo model endpoints and
// normalizes them to the common schema. All unit conversion happens here;
// nothing downstream sees provider-native units.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: httputil.NewClient(httputil.DefaultTimeout)}
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindGusts     []*float64 `json:"wind_gusts_10m"`
		Precipitation []*float64 `json:"precipitation"`
		Temperature   []*float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// Fetch returns one provider's normalized hourly series for the window,
// or a *Error on transport or payload failure.
func (c *Client) Fetch(ctx context.Context, cfg Config, lat, lon float64, start, end time.Time) (Series, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("hourly", "wind_speed_10m,wind_gusts_10m,precipitation,temperature_2m")
	params.Set("start_date", start.UTC().Format("2006-01-02"))
	params.Set("end_date", end.UTC().Format("2006-01-02"))
	params.Set("timezone", "UTC")
	fetchURL := cfg.BaseURL + "?" + params.Encode()

	began := time.Now()
	body, err := c.get(ctx, fetchURL)
	metrics.ProviderLatency.WithLabelValues(cfg.Name).Observe(time.Since(began).Seconds())
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(cfg.Name, "error").Inc()
		return Series{}, &Error{Provider: cfg.Name, Err: err}
	}
	metrics.ProviderCallsTotal.WithLabelValues(cfg.Name, "ok").Inc()

	var data openMeteoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return Series{}, &Error{Provider: cfg.Name, Err: fmt.Errorf("unmarshal: %w", err)}
	}

	hourly := data.Hourly
	series := Series{Provider: cfg.Name}
	for i, raw := range hourly.Time {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return Series{}, &Error{Provider: cfg.Name, Err: fmt.Errorf("parse time %q: %w", raw, err)}
		}

		// Open-Meteo reports winds in km/h; everything else is already in
		// the common units (mm/h, °C).
		series.Hours = append(series.Hours, Hour{
			Timestamp:     ts,
			WindSpeed:     sanitize(at(hourly.WindSpeed, i), neutralWindMS) / kmhPerMeterSec,
			WindGusts:     sanitize(at(hourly.WindGusts, i), neutralGustMS) / kmhPerMeterSec,
			Precipitation: sanitize(at(hourly.Precipitation, i), neutralPrecip),
			Temperature:   sanitize(at(hourly.Temperature, i), neutralTempC),
		})
	}

	return series, nil
}

func (c *Client) get(ctx context.Context, fetchURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch hourly: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("retryable: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch hourly: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02T15:04", raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

// at returns the i-th element of a ragged hourly array, or nil when the
// provider returned fewer values than timestamps.
func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// sanitize substitutes the neutral default for missing or non-finite
// values so NaN/∞ never propagates downstream.
func sanitize(v *float64, neutral float64) float64 {
	if v == nil {
		return neutral
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return neutral
	}
	return f
}
