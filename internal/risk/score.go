// Package risk maps combined forecast hours to go/no-go risk scores and
// rolls scored hours into daily recommendations.
package risk

import (
	"github.com/orcamet/riskengine/internal/models"
)

// Classification bands on the combined 0–100 score.
const (
	CautionBand = 20.0
	CancelBand  = 50.0
)

// Score computes the hourly risk for one ensemble hour against a threshold
// profile. Each variable maps to a severity in [0,100] on a two-point
// piecewise scale (0 below caution, 100 at or beyond cancel, linear
// between; temperature inverted since lower is worse), and the hour's risk
// is the worst single severity: any one disqualifying condition cancels
// rope-access work. Identical inputs always yield identical output.
func Score(hour models.EnsembleHour, thresholds models.ThresholdProfile) models.HourlyRisk {
	wind := severity(hour.WindSpeed, thresholds.WindMeanCaution, thresholds.WindMeanCancel)
	gust := severity(hour.WindGusts, thresholds.GustCaution, thresholds.GustCancel)
	precip := severity(hour.Precipitation, thresholds.PrecipCaution, thresholds.PrecipCancel)
	temp := severityInverted(hour.Temperature, thresholds.TempMinCaution, thresholds.TempMinCancel)

	return models.HourlyRisk{
		EnsembleHour: hour,
		Risk:         max4(wind, gust, precip, temp),
	}
}

// Classify maps a combined risk score to its recommendation band:
// <20 GO, <50 CAUTION, else CANCEL.
func Classify(score float64) models.Recommendation {
	switch {
	case score < CautionBand:
		return models.RecommendationGo
	case score < CancelBand:
		return models.RecommendationCaution
	default:
		return models.RecommendationCancel
	}
}

// severity scales a value to [0,100]: 0 at or below caution, 100 at or
// beyond cancel, linear in between. A degenerate profile with
// caution == cancel acts as a step at that value.
func severity(value, caution, cancel float64) float64 {
	if value < caution {
		return 0
	}
	if value >= cancel {
		return 100
	}
	if cancel == caution {
		return 100
	}
	return (value - caution) / (cancel - caution) * 100
}

// severityInverted handles temperature, where lower is worse: caution sits
// above cancel (e.g. caution 1°C, cancel −2°C).
func severityInverted(value, caution, cancel float64) float64 {
	if value > caution {
		return 0
	}
	if value <= cancel {
		return 100
	}
	if caution == cancel {
		return 100
	}
	return (caution - value) / (caution - cancel) * 100
}

func max4(a, b, c, d float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}
