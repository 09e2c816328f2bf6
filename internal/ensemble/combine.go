// Package ensemble merges normalized provider series into one weighted-mean
// hourly series with a per-variable inter-model spread.
package ensemble

import (
	"sort"
	"time"

	"github.com/orcamet/riskengine/internal/models"
	"github.com/orcamet/riskengine/internal/provider"
)

// WeightFunc maps a provider name to its ensemble weight.
type WeightFunc func(name string) float64

// EqualWeights weights every provider the same.
func EqualWeights(string) float64 { return 1.0 }

// Combine produces one EnsembleHour per timestamp present in any input
// series, sorted by time. For each timestamp the mean is the weighted mean
// over the providers that reported that hour; the spread is max−min among
// those same providers (0 with a single contributor). Hours with zero
// contributors are dropped: missing data is never synthesised. A provider
// contributing zero hours overall reduces membership for the whole window
// but does not affect the hours the others cover.
func Combine(series []provider.Series, weight WeightFunc) []models.EnsembleHour {
	if weight == nil {
		weight = EqualWeights
	}

	// Float addition is not associative, so the sums run in sorted provider
	// order regardless of how the caller ordered the input.
	ordered := make([]provider.Series, len(series))
	copy(ordered, series)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Provider < ordered[j].Provider
	})

	type accumulator struct {
		wind   variable
		gust   variable
		precip variable
		temp   variable
	}

	byTime := make(map[time.Time]*accumulator)
	for _, s := range ordered {
		w := weight(s.Provider)
		if w <= 0 {
			continue
		}
		for _, h := range s.Hours {
			acc, ok := byTime[h.Timestamp]
			if !ok {
				acc = &accumulator{}
				byTime[h.Timestamp] = acc
			}
			acc.wind.add(h.WindSpeed, w)
			acc.gust.add(h.WindGusts, w)
			acc.precip.add(h.Precipitation, w)
			acc.temp.add(h.Temperature, w)
		}
	}

	hours := make([]models.EnsembleHour, 0, len(byTime))
	for ts, acc := range byTime {
		hours = append(hours, models.EnsembleHour{
			Timestamp:     ts,
			WindSpeed:     acc.wind.mean(),
			WindGusts:     acc.gust.mean(),
			Precipitation: acc.precip.mean(),
			Temperature:   acc.temp.mean(),
			WindSpread:    acc.wind.spread(),
			GustSpread:    acc.gust.spread(),
			PrecipSpread:  acc.precip.spread(),
			TempSpread:    acc.temp.spread(),
		})
	}

	sort.Slice(hours, func(i, j int) bool {
		return hours[i].Timestamp.Before(hours[j].Timestamp)
	})
	return hours
}

// variable accumulates weighted contributions for one forecast variable at
// one timestamp.
type variable struct {
	weightedSum float64
	totalWeight float64
	min         float64
	max         float64
	count       int
}

func (v *variable) add(value, weight float64) {
	v.weightedSum += value * weight
	v.totalWeight += weight
	if v.count == 0 || value < v.min {
		v.min = value
	}
	if v.count == 0 || value > v.max {
		v.max = value
	}
	v.count++
}

func (v *variable) mean() float64 {
	if v.totalWeight == 0 {
		return 0
	}
	return v.weightedSum / v.totalWeight
}

func (v *variable) spread() float64 {
	if v.count < 2 {
		return 0
	}
	return v.max - v.min
}
