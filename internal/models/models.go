package models

import "time"

// Default values for channels a sensor may omit.
const (
	DefaultHumidity = 50.0
	DefaultAltitude = 0.0
)

// Reading is one accepted sensor message, stamped with its arrival time.
type Reading struct {
	ReceivedAt  time.Time
	Temperature float64
	Pressure    float64
	Humidity    float64
	Altitude    float64
	Light       float64
}

// Channels returns the four modelled channels of the reading. Light is not
// modelled.
func (r Reading) Channels() Channels {
	return Channels{
		Temperature: r.Temperature,
		Pressure:    r.Pressure,
		Humidity:    r.Humidity,
		Altitude:    r.Altitude,
	}
}

type Channels struct {
	Temperature float64
	Pressure    float64
	Humidity    float64
	Altitude    float64
}

// Prediction is a single forecast point. One row per point is written to the
// durable prediction log.
type Prediction struct {
	BatchID        string
	PredictionTime time.Time
	TargetTime     time.Time
	Channels
}

// ForecastBatch is the full horizon produced by one forecaster invocation.
type ForecastBatch struct {
	ID          string
	GeneratedAt time.Time
	Points      []Prediction
}

func (b ForecastBatch) Empty() bool {
	return len(b.Points) == 0
}

// Last returns the furthest-ahead point of the batch.
func (b ForecastBatch) Last() (Prediction, bool) {
	if len(b.Points) == 0 {
		return Prediction{}, false
	}
	return b.Points[len(b.Points)-1], true
}
