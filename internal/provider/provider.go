package provider

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Hour is one normalized forecast hour in common units:
// wind/gust m/s, precipitation mm/h, temperature °C.
type Hour struct {
	Timestamp     time.Time
	WindSpeed     float64
	WindGusts     float64
	Precipitation float64
	Temperature   float64
}

// Series is one provider's normalized hourly output for a location and
// window. It may cover fewer hours than requested if the provider errored
// partway.
type Series struct {
	Provider string
	Hours    []Hour
}

// Config describes one known forecast provider: where to fetch it and how
// much weight it carries in the ensemble.
type Config struct {
	Name    string
	Label   string
	BaseURL string
	Weight  float64
}

// ErrUnknownProvider is returned when a requested provider name is not in
// the registry. This is a configuration error and is surfaced before any
// network activity begins.
var ErrUnknownProvider = errors.New("unknown provider")

// Error wraps a transport or payload failure from one provider. Callers
// recover from it per provider: a failed provider reduces ensemble
// membership but never aborts a run on its own.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry is an immutable set of provider configurations. Tests substitute
// their own registry with fake endpoints instead of patching global state.
type Registry struct {
	configs map[string]Config
}

func NewRegistry(configs ...Config) Registry {
	m := make(map[string]Config, len(configs))
	for _, c := range configs {
		m[c.Name] = c
	}
	return Registry{configs: m}
}

// DefaultRegistry returns the production provider set. Each entry maps to a
// dedicated Open-Meteo model endpoint; weights favour the models that
// verify best over the UK.
func DefaultRegistry() Registry {
	return NewRegistry(
		Config{Name: "ecmwf", Label: "ECMWF IFS", BaseURL: "https://api.open-meteo.com/v1/ecmwf", Weight: 1.3},
		Config{Name: "ukmo", Label: "UK Met Office UKV", BaseURL: "https://api.open-meteo.com/v1/ukmo", Weight: 1.2},
		Config{Name: "icon", Label: "DWD ICON", BaseURL: "https://api.open-meteo.com/v1/dwd-icon", Weight: 1.1},
		Config{Name: "gfs", Label: "NOAA GFS", BaseURL: "https://api.open-meteo.com/v1/gfs", Weight: 1.0},
		Config{Name: "gem", Label: "Canadian GEM", BaseURL: "https://api.open-meteo.com/v1/gem", Weight: 0.9},
	)
}

// Lookup returns the configuration for a named provider.
func (r Registry) Lookup(name string) (Config, error) {
	c, ok := r.configs[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, name, r.Names())
	}
	return c, nil
}

// Names returns the registered provider names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Weight returns a weighting function over this registry's providers,
// defaulting to 1.0 for providers it does not know.
func (r Registry) Weight(name string) float64 {
	if c, ok := r.configs[name]; ok && c.Weight > 0 {
		return c.Weight
	}
	return 1.0
}
