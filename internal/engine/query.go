package engine

import (
	"time"

	"github.com/lox/weatherpulse/internal/forecast"
)

// WaitingTimestamp is reported by Snapshot before the first reading arrives.
const WaitingTimestamp = "Waiting for data..."

// Snapshot is the live view: the latest reading alongside the furthest
// forecast point.
type Snapshot struct {
	Temperature     float64 `json:"temperature"`
	Pressure        float64 `json:"pressure"`
	Humidity        float64 `json:"humidity"`
	Altitude        float64 `json:"altitude"`
	Light           float64 `json:"light"`
	PredTemperature float64 `json:"pred_temperature"`
	PredPressure    float64 `json:"pred_pressure"`
	PredHumidity    float64 `json:"pred_humidity"`
	PredAltitude    float64 `json:"pred_altitude"`
	IsPredicting    bool    `json:"is_predicting"`
	TimeRemaining   int     `json:"time_remaining"`
	PredictionCount int     `json:"prediction_count"`
	Timestamp       string  `json:"timestamp"`
}

// HistoryForecast is the chart view: the tail of the window and the head of
// a fresh forecast.
type HistoryForecast struct {
	Timestamps       []time.Time `json:"timestamps"`
	Temperatures     []float64   `json:"temperatures"`
	Pressures        []float64   `json:"pressures"`
	Humidities       []float64   `json:"humidities"`
	Altitudes        []float64   `json:"altitudes"`
	Lights           []float64   `json:"lights"`
	PredTimestamps   []time.Time `json:"pred_timestamps"`
	PredTemperatures []float64   `json:"pred_temperatures"`
	PredPressures    []float64   `json:"pred_pressures"`
	PredHumidities   []float64   `json:"pred_humidities"`
	PredAltitudes    []float64   `json:"pred_altitudes"`
	IsPredicting     bool        `json:"is_predicting"`
}

// Snapshot forecasts afresh and reports the latest reading with the last
// point of the new batch. While warming up the reading itself stands in for
// the prediction.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	latest, ok := e.history.Last()
	if !ok {
		return Snapshot{
			TimeRemaining:   e.timeRemaining(0),
			PredictionCount: e.batchCount,
			Timestamp:       WaitingTimestamp,
		}
	}

	batch := e.forecastLocked(e.history.Snapshot())
	pred := latest.Channels()
	last, predicting := batch.Last()
	if predicting {
		pred = last.Channels
	}

	return Snapshot{
		Temperature:     latest.Temperature,
		Pressure:        latest.Pressure,
		Humidity:        latest.Humidity,
		Altitude:        latest.Altitude,
		Light:           latest.Light,
		PredTemperature: pred.Temperature,
		PredPressure:    pred.Pressure,
		PredHumidity:    pred.Humidity,
		PredAltitude:    pred.Altitude,
		IsPredicting:    predicting,
		TimeRemaining:   e.timeRemaining(e.history.Len()),
		PredictionCount: e.batchCount,
		Timestamp:       latest.ReceivedAt.Format(time.RFC3339Nano),
	}
}

// HistoryForecast forecasts afresh and returns the last Display window
// points with the first Display forecast points.
func (e *Engine) HistoryForecast() HistoryForecast {
	e.mu.Lock()
	defer e.mu.Unlock()

	d := e.cfg.Display
	hist := e.history.Tail(d)
	out := HistoryForecast{
		Timestamps:       make([]time.Time, 0, len(hist)),
		Temperatures:     make([]float64, 0, len(hist)),
		Pressures:        make([]float64, 0, len(hist)),
		Humidities:       make([]float64, 0, len(hist)),
		Altitudes:        make([]float64, 0, len(hist)),
		Lights:           make([]float64, 0, len(hist)),
		PredTimestamps:   []time.Time{},
		PredTemperatures: []float64{},
		PredPressures:    []float64{},
		PredHumidities:   []float64{},
		PredAltitudes:    []float64{},
	}
	if len(hist) == 0 {
		return out
	}

	for _, r := range hist {
		out.Timestamps = append(out.Timestamps, r.ReceivedAt)
		out.Temperatures = append(out.Temperatures, r.Temperature)
		out.Pressures = append(out.Pressures, r.Pressure)
		out.Humidities = append(out.Humidities, r.Humidity)
		out.Altitudes = append(out.Altitudes, r.Altitude)
		out.Lights = append(out.Lights, r.Light)
	}

	batch := e.forecastLocked(e.history.Snapshot())
	if batch.Empty() {
		return out
	}

	out.IsPredicting = true
	for _, p := range forecast.Truncate(batch.Points, d) {
		out.PredTimestamps = append(out.PredTimestamps, p.TargetTime)
		out.PredTemperatures = append(out.PredTemperatures, p.Temperature)
		out.PredPressures = append(out.PredPressures, p.Pressure)
		out.PredHumidities = append(out.PredHumidities, p.Humidity)
		out.PredAltitudes = append(out.PredAltitudes, p.Altitude)
	}
	return out
}

// timeRemaining is the warm-up countdown in whole seconds for a window of
// the given size.
func (e *Engine) timeRemaining(size int) int {
	remaining := e.cfg.WarmUp() - time.Duration(size)*e.cfg.Interval
	if remaining < 0 {
		return 0
	}
	return int(remaining.Round(time.Second) / time.Second)
}
