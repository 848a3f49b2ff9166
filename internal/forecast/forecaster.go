package forecast

import (
	"time"

	"github.com/lox/weatherpulse/internal/models"
)

const (
	DefaultHorizon  = 60
	DefaultDisplay  = 12
	DefaultInterval = 5 * time.Second
)

// Forecaster projects a trained model forward Horizon points past the end of
// the window, spacing targets by Interval.
type Forecaster struct {
	Horizon  int
	Interval time.Duration
}

// Forecast returns the projected points, or nil when there is no model or no
// data. Position n-1+i is evaluated for i in 1..Horizon where n is the
// current window size.
func (f Forecaster) Forecast(window []models.Reading, model *Model, generatedAt time.Time) []models.Prediction {
	if model == nil || len(window) == 0 || f.Horizon <= 0 {
		return nil
	}

	n := len(window)
	last := window[n-1].ReceivedAt
	points := make([]models.Prediction, f.Horizon)
	for i := 1; i <= f.Horizon; i++ {
		points[i-1] = models.Prediction{
			PredictionTime: generatedAt,
			TargetTime:     last.Add(time.Duration(i) * f.Interval),
			Channels:       model.Predict(float64(n - 1 + i)),
		}
	}
	return points
}

// Truncate returns at most the first d points. The input is not modified.
func Truncate(points []models.Prediction, d int) []models.Prediction {
	if d < 0 {
		d = 0
	}
	if d > len(points) {
		d = len(points)
	}
	return append([]models.Prediction(nil), points[:d]...)
}
