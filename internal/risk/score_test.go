package risk

import (
	"testing"
	"time"

	"github.com/orcamet/riskengine/internal/models"
)

// calmHour keeps every variable well inside the GO range so a single
// variable can be exercised in isolation.
func calmHour() models.EnsembleHour {
	return models.EnsembleHour{
		Timestamp:     time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		WindSpeed:     2,
		WindGusts:     3,
		Precipitation: 0,
		Temperature:   15,
	}
}

func TestScore_ThresholdBoundaries(t *testing.T) {
	thresholds := models.DefaultThresholds()

	tests := []struct {
		name   string
		modify func(*models.EnsembleHour)
		want   float64
	}{
		{
			name:   "wind exactly at caution scores 0",
			modify: func(h *models.EnsembleHour) { h.WindSpeed = thresholds.WindMeanCaution },
			want:   0,
		},
		{
			name:   "wind exactly at cancel scores 100",
			modify: func(h *models.EnsembleHour) { h.WindSpeed = thresholds.WindMeanCancel },
			want:   100,
		},
		{
			name:   "wind midway scores 50",
			modify: func(h *models.EnsembleHour) { h.WindSpeed = 12 }, // midpoint of 10..14
			want:   50,
		},
		{
			name:   "wind beyond cancel clamps at 100",
			modify: func(h *models.EnsembleHour) { h.WindSpeed = 40 },
			want:   100,
		},
		{
			name:   "gust exactly at caution scores 0",
			modify: func(h *models.EnsembleHour) { h.WindGusts = thresholds.GustCaution },
			want:   0,
		},
		{
			name:   "gust exactly at cancel scores 100",
			modify: func(h *models.EnsembleHour) { h.WindGusts = thresholds.GustCancel },
			want:   100,
		},
		{
			name:   "precip exactly at cancel scores 100",
			modify: func(h *models.EnsembleHour) { h.Precipitation = thresholds.PrecipCancel },
			want:   100,
		},
		{
			name:   "temperature exactly at caution scores 0",
			modify: func(h *models.EnsembleHour) { h.Temperature = thresholds.TempMinCaution },
			want:   0,
		},
		{
			name:   "temperature at cancel scores 100",
			modify: func(h *models.EnsembleHour) { h.Temperature = thresholds.TempMinCancel },
			want:   100,
		},
		{
			name:   "temperature below cancel clamps at 100",
			modify: func(h *models.EnsembleHour) { h.Temperature = -15 },
			want:   100,
		},
		{
			name:   "temperature midway between caution and cancel",
			modify: func(h *models.EnsembleHour) { h.Temperature = -0.5 }, // midpoint of 1..-2
			want:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour := calmHour()
			tt.modify(&hour)
			got := Score(hour, thresholds)
			if got.Risk != tt.want {
				t.Errorf("Risk = %g, want %g", got.Risk, tt.want)
			}
		})
	}
}

func TestScore_WorstFactorGoverns(t *testing.T) {
	thresholds := models.DefaultThresholds()
	hour := calmHour()
	hour.WindSpeed = 11    // severity 25
	hour.Precipitation = 2 // severity 100

	got := Score(hour, thresholds)
	if got.Risk != 100 {
		t.Errorf("Risk = %g, want 100 (max of per-variable severities)", got.Risk)
	}
}

func TestScore_Monotonic(t *testing.T) {
	thresholds := models.DefaultThresholds()

	prev := -1.0
	for wind := 0.0; wind <= 20; wind += 0.5 {
		hour := calmHour()
		hour.WindSpeed = wind
		got := Score(hour, thresholds).Risk
		if got < prev {
			t.Fatalf("risk decreased from %g to %g as wind rose to %g", prev, got, wind)
		}
		prev = got
	}

	prev = -1.0
	for temp := 20.0; temp >= -10; temp -= 0.5 {
		hour := calmHour()
		hour.Temperature = temp
		got := Score(hour, thresholds).Risk
		if got < prev {
			t.Fatalf("risk decreased from %g to %g as temperature fell to %g", prev, got, temp)
		}
		prev = got
	}
}

func TestScore_Deterministic(t *testing.T) {
	thresholds := models.DefaultThresholds()
	hour := calmHour()
	hour.WindSpeed = 11.7
	hour.Precipitation = 1.2

	first := Score(hour, thresholds)
	for i := 0; i < 10; i++ {
		if got := Score(hour, thresholds); got != first {
			t.Fatalf("Score not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestClassify_BandsPartitionExact(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Recommendation
	}{
		{0, models.RecommendationGo},
		{19.999, models.RecommendationGo},
		{20.0, models.RecommendationCaution},
		{49.999, models.RecommendationCaution},
		{50.0, models.RecommendationCancel},
		{100, models.RecommendationCancel},
	}

	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%g) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
