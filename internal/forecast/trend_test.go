package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/lox/weatherpulse/internal/models"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestFitLine(t *testing.T) {
	tests := []struct {
		name          string
		ys            []float64
		wantSlope     float64
		wantIntercept float64
	}{
		{"empty", nil, 0, 0},
		{"single point", []float64{7}, 0, 7},
		{"constant", []float64{20, 20, 20, 20}, 0, 20},
		{"identity", []float64{0, 1, 2, 3, 4}, 1, 0},
		{"offset descending", []float64{10, 8, 6, 4}, -2, 10},
		{"noisy symmetric", []float64{1, 3, 1, 3}, 0.4, 1.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitLine(tt.ys)
			if !almostEqual(got.Slope, tt.wantSlope) {
				t.Errorf("Slope = %v, want %v", got.Slope, tt.wantSlope)
			}
			if !almostEqual(got.Intercept, tt.wantIntercept) {
				t.Errorf("Intercept = %v, want %v", got.Intercept, tt.wantIntercept)
			}
		})
	}
}

func readings(n int, temp func(i int) float64) []models.Reading {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	out := make([]models.Reading, n)
	for i := range out {
		out[i] = models.Reading{
			ReceivedAt:  start.Add(time.Duration(i) * 5 * time.Second),
			Temperature: temp(i),
			Pressure:    1013,
			Humidity:    50,
			Altitude:    100,
			Light:       float64(i),
		}
	}
	return out
}

func TestTrainer_BelowThresholdIsNoop(t *testing.T) {
	tr := NewTrainer(36)
	if tr.MaybeRetrain(readings(35, func(int) float64 { return 20 })) {
		t.Fatal("retrained below threshold")
	}
	if m := tr.Current(35); m != nil {
		t.Fatalf("Current() = %+v, want nil", m)
	}
}

func TestTrainer_KeepsPreviousModelWhenGateFails(t *testing.T) {
	tr := NewTrainer(3)
	if !tr.MaybeRetrain(readings(3, func(i int) float64 { return float64(i) })) {
		t.Fatal("expected retrain")
	}
	if tr.MaybeRetrain(readings(2, func(int) float64 { return 99 })) {
		t.Fatal("retrained below threshold")
	}
	m := tr.Current(3)
	if m == nil || !almostEqual(m.Temperature.Slope, 1) {
		t.Fatalf("model replaced: %+v", m)
	}
}

func TestTrainer_ReplacesModelWholesale(t *testing.T) {
	tr := NewTrainer(4)
	tr.MaybeRetrain(readings(4, func(i int) float64 { return float64(i) }))
	tr.MaybeRetrain(readings(4, func(int) float64 { return 5 }))

	m := tr.Current(4)
	if m.Temperature.Slope != 0 || !almostEqual(m.Temperature.Intercept, 5) {
		t.Errorf("Temperature = %+v, want flat at 5", m.Temperature)
	}
	if m.Samples != 4 {
		t.Errorf("Samples = %d, want 4", m.Samples)
	}
}

func TestTrainer_CurrentHonoursWarmUp(t *testing.T) {
	tr := NewTrainer(36)
	tr.MaybeRetrain(readings(36, func(int) float64 { return 20 }))
	if tr.Current(36) == nil {
		t.Fatal("expected model at threshold")
	}
	if tr.Current(10) != nil {
		t.Fatal("model visible for a warming-up window")
	}
	tr.Reset()
	if tr.Current(36) != nil {
		t.Fatal("model survived Reset")
	}
}

func TestFit_LightIsNotModelled(t *testing.T) {
	m := Fit(readings(10, func(int) float64 { return 1 }))
	got := m.Predict(100)
	want := models.Channels{Temperature: 1, Pressure: 1013, Humidity: 50, Altitude: 100}
	if got != want {
		t.Errorf("Predict(100) = %+v, want %+v", got, want)
	}
}
