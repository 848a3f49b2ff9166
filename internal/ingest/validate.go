package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lox/weatherpulse/internal/models"
)

// ErrMalformed marks a message that cannot become a Reading. Such messages
// are dropped without acknowledgment.
var ErrMalformed = errors.New("malformed reading")

const (
	FieldTemperature = "temperature"
	FieldPressure    = "pressure"
	FieldLight       = "light"
)

// Payload is the wire shape of a sensor message. Pointers distinguish
// absent fields from zero values.
type Payload struct {
	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`
	Humidity    *float64 `json:"humidity"`
	Altitude    *float64 `json:"altitude"`
	Light       *float64 `json:"light"`
}

// ParseReading decodes a JSON object into a Reading, applying the defaults
// for optional channels. The arrival time is left for the caller to stamp.
func ParseReading(raw []byte) (models.Reading, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p.Reading()
}

// Missing lists the required fields absent from the payload.
func (p Payload) Missing() []string {
	var missing []string
	if p.Temperature == nil {
		missing = append(missing, FieldTemperature)
	}
	if p.Pressure == nil {
		missing = append(missing, FieldPressure)
	}
	if p.Light == nil {
		missing = append(missing, FieldLight)
	}
	return missing
}

func (p Payload) Reading() (models.Reading, error) {
	if missing := p.Missing(); len(missing) > 0 {
		return models.Reading{}, fmt.Errorf("%w: missing %v", ErrMalformed, missing)
	}

	r := models.Reading{
		Temperature: *p.Temperature,
		Pressure:    *p.Pressure,
		Light:       *p.Light,
		Humidity:    models.DefaultHumidity,
		Altitude:    models.DefaultAltitude,
	}
	if p.Humidity != nil {
		r.Humidity = *p.Humidity
	}
	if p.Altitude != nil {
		r.Altitude = *p.Altitude
	}
	return r, nil
}
