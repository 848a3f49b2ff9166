package forecast

import (
	"time"

	"github.com/lox/weatherpulse/internal/models"
)

// DefaultMinSamples is three minutes of readings at a five second interval.
const DefaultMinSamples = 36

// Line is y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// FitLine performs ordinary least squares of ys against their index
// positions 0..len(ys)-1. Zero-variance input, or a single point, yields a
// flat line through the mean.
func FitLine(ys []float64) Line {
	n := len(ys)
	if n == 0 {
		return Line{}
	}

	var sumY float64
	for _, y := range ys {
		sumY += y
	}
	meanX := float64(n-1) / 2
	meanY := sumY / float64(n)

	var ssXY, ssXX float64
	for i, y := range ys {
		dx := float64(i) - meanX
		ssXY += dx * (y - meanY)
		ssXX += dx * dx
	}
	if ssXX == 0 || ssXY == 0 {
		return Line{Slope: 0, Intercept: meanY}
	}

	slope := ssXY / ssXX
	return Line{Slope: slope, Intercept: meanY - slope*meanX}
}

// Model is one linear trend per modelled channel, fitted over window
// positions.
type Model struct {
	Temperature Line
	Pressure    Line
	Humidity    Line
	Altitude    Line
	Samples     int
	TrainedAt   time.Time
}

// Fit builds a model from the window, oldest reading at position 0.
func Fit(window []models.Reading) Model {
	temps := make([]float64, len(window))
	pressures := make([]float64, len(window))
	humidities := make([]float64, len(window))
	altitudes := make([]float64, len(window))
	for i, r := range window {
		temps[i] = r.Temperature
		pressures[i] = r.Pressure
		humidities[i] = r.Humidity
		altitudes[i] = r.Altitude
	}
	return Model{
		Temperature: FitLine(temps),
		Pressure:    FitLine(pressures),
		Humidity:    FitLine(humidities),
		Altitude:    FitLine(altitudes),
		Samples:     len(window),
	}
}

// Predict evaluates every channel at window position x.
func (m Model) Predict(x float64) models.Channels {
	return models.Channels{
		Temperature: m.Temperature.At(x),
		Pressure:    m.Pressure.At(x),
		Humidity:    m.Humidity.At(x),
		Altitude:    m.Altitude.At(x),
	}
}

// Trainer owns the current model and refits it once the window holds at
// least MinSamples readings.
type Trainer struct {
	MinSamples int
	Now        func() time.Time

	model *Model
}

func NewTrainer(minSamples int) *Trainer {
	return &Trainer{MinSamples: minSamples, Now: time.Now}
}

// Ready reports whether a window of the given size passes the readiness gate.
func (t *Trainer) Ready(size int) bool {
	return size > 0 && size >= t.MinSamples
}

// MaybeRetrain refits the model from scratch when the window is large
// enough and reports whether it did. Below the threshold the previous model
// is left untouched.
func (t *Trainer) MaybeRetrain(window []models.Reading) bool {
	if !t.Ready(len(window)) {
		return false
	}
	m := Fit(window)
	m.TrainedAt = t.Now()
	t.model = &m
	return true
}

// Current returns the trained model, or nil while untrained or while a
// window of windowSize would still be warming up.
func (t *Trainer) Current(windowSize int) *Model {
	if t.model == nil || !t.Ready(windowSize) {
		return nil
	}
	m := *t.model
	return &m
}

// Reset discards the model.
func (t *Trainer) Reset() {
	t.model = nil
}
