package risk

import (
	"time"

	"github.com/orcamet/riskengine/internal/models"
)

// AggregateDay rolls an ordered day of hourly risk into one summary. The
// recommendation comes from the peak hourly risk, not the average: the
// worst hour of the day determines the whole day's go/no-go. An empty
// sequence yields ok=false and the day is absent from output; no data is
// not a zero-risk day.
func AggregateDay(date time.Time, hours []models.HourlyRisk) (models.DailySummary, bool) {
	if len(hours) == 0 {
		return models.DailySummary{}, false
	}

	summary := models.DailySummary{
		Date:       date,
		PeakRisk:   hours[0].Risk,
		PeakWind:   hours[0].WindSpeed,
		PeakGust:   hours[0].WindGusts,
		PeakPrecip: hours[0].Precipitation,
		MinTemp:    hours[0].Temperature,
	}
	for _, h := range hours[1:] {
		if h.Risk > summary.PeakRisk {
			summary.PeakRisk = h.Risk
		}
		if h.WindSpeed > summary.PeakWind {
			summary.PeakWind = h.WindSpeed
		}
		if h.WindGusts > summary.PeakGust {
			summary.PeakGust = h.WindGusts
		}
		if h.Precipitation > summary.PeakPrecip {
			summary.PeakPrecip = h.Precipitation
		}
		if h.Temperature < summary.MinTemp {
			summary.MinTemp = h.Temperature
		}
	}

	summary.Recommendation = Classify(summary.PeakRisk)
	return summary, true
}

// GroupByDay splits scored hours into UTC calendar days keyed by
// "2006-01-02", preserving hour order within each day. Days come back in
// first-seen order, which is chronological for sorted input.
func GroupByDay(hours []models.HourlyRisk) ([]string, map[string][]models.HourlyRisk) {
	byDay := make(map[string][]models.HourlyRisk)
	var days []string
	for _, h := range hours {
		day := h.Timestamp.UTC().Format("2006-01-02")
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], h)
	}
	return days, byDay
}
