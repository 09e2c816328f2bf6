package risk

import (
	"testing"
	"time"

	"github.com/orcamet/riskengine/internal/models"
)

func riskHour(ts time.Time, wind, gust, precip, temp, score float64) models.HourlyRisk {
	return models.HourlyRisk{
		EnsembleHour: models.EnsembleHour{
			Timestamp:     ts,
			WindSpeed:     wind,
			WindGusts:     gust,
			Precipitation: precip,
			Temperature:   temp,
		},
		Risk: score,
	}
}

func TestAggregateDay_AllGo(t *testing.T) {
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	var hours []models.HourlyRisk
	for i := 0; i < 24; i++ {
		hours = append(hours, riskHour(date.Add(time.Duration(i)*time.Hour), 4, 6, 0, 12, 5))
	}

	summary, ok := AggregateDay(date, hours)
	if !ok {
		t.Fatal("AggregateDay returned ok=false for non-empty day")
	}
	if summary.Recommendation != models.RecommendationGo {
		t.Errorf("Recommendation = %s, want GO", summary.Recommendation)
	}
	if summary.PeakRisk >= 20 {
		t.Errorf("PeakRisk = %g, want < 20", summary.PeakRisk)
	}
}

func TestAggregateDay_OneCancelHourFlipsDay(t *testing.T) {
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	var hours []models.HourlyRisk
	for i := 0; i < 24; i++ {
		hours = append(hours, riskHour(date.Add(time.Duration(i)*time.Hour), 4, 6, 0, 12, 5))
	}
	hours[13] = riskHour(date.Add(13*time.Hour), 16, 22, 0, 12, 100)

	summary, ok := AggregateDay(date, hours)
	if !ok {
		t.Fatal("AggregateDay returned ok=false")
	}
	if summary.Recommendation != models.RecommendationCancel {
		t.Errorf("Recommendation = %s, want CANCEL (worst hour governs)", summary.Recommendation)
	}
	if summary.PeakRisk != 100 {
		t.Errorf("PeakRisk = %g, want 100", summary.PeakRisk)
	}
	if summary.PeakWind != 16 || summary.PeakGust != 22 {
		t.Errorf("peaks = (%g, %g), want (16, 22)", summary.PeakWind, summary.PeakGust)
	}
}

func TestAggregateDay_PeakStats(t *testing.T) {
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	hours := []models.HourlyRisk{
		riskHour(date, 5, 9, 0.2, 8, 10),
		riskHour(date.Add(time.Hour), 9, 13, 1.5, 3, 40),
		riskHour(date.Add(2*time.Hour), 7, 11, 0.4, -1, 66),
	}

	summary, ok := AggregateDay(date, hours)
	if !ok {
		t.Fatal("AggregateDay returned ok=false")
	}
	if summary.PeakWind != 9 {
		t.Errorf("PeakWind = %g, want 9", summary.PeakWind)
	}
	if summary.PeakGust != 13 {
		t.Errorf("PeakGust = %g, want 13", summary.PeakGust)
	}
	if summary.PeakPrecip != 1.5 {
		t.Errorf("PeakPrecip = %g, want 1.5", summary.PeakPrecip)
	}
	if summary.MinTemp != -1 {
		t.Errorf("MinTemp = %g, want -1", summary.MinTemp)
	}
	if summary.PeakRisk != 66 {
		t.Errorf("PeakRisk = %g, want 66", summary.PeakRisk)
	}
	if summary.Recommendation != models.RecommendationCancel {
		t.Errorf("Recommendation = %s, want CANCEL", summary.Recommendation)
	}
}

func TestAggregateDay_EmptyDayAbsent(t *testing.T) {
	if _, ok := AggregateDay(time.Now(), nil); ok {
		t.Error("AggregateDay(empty) ok = true, want false: no data is not a zero-risk day")
	}
}

func TestGroupByDay(t *testing.T) {
	d1 := time.Date(2026, 9, 1, 22, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 9, 2, 1, 0, 0, 0, time.UTC)
	hours := []models.HourlyRisk{
		riskHour(d1, 5, 8, 0, 10, 0),
		riskHour(d1.Add(time.Hour), 5, 8, 0, 10, 0),
		riskHour(d2, 5, 8, 0, 10, 0),
	}

	days, byDay := GroupByDay(hours)
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[0] != "2026-09-01" || days[1] != "2026-09-02" {
		t.Errorf("days = %v, want [2026-09-01 2026-09-02]", days)
	}
	if len(byDay["2026-09-01"]) != 2 {
		t.Errorf("day 1 has %d hours, want 2", len(byDay["2026-09-01"]))
	}
	if len(byDay["2026-09-02"]) != 1 {
		t.Errorf("day 2 has %d hours, want 1", len(byDay["2026-09-02"]))
	}
}
