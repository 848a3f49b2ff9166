package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/weatherpulse/internal/forecast"
)

// Config sizes the forecasting pipeline.
type Config struct {
	Capacity     int           // readings kept in the history window (C)
	MinSamples   int           // readiness threshold for training (M)
	Horizon      int           // points per forecast batch (H)
	Display      int           // points returned to charts (D)
	BatchHistory int           // forecast batches kept for display (K)
	Interval     time.Duration // expected spacing between readings
}

func DefaultConfig() Config {
	return Config{
		Capacity:     100,
		MinSamples:   forecast.DefaultMinSamples,
		Horizon:      forecast.DefaultHorizon,
		Display:      forecast.DefaultDisplay,
		BatchHistory: 20,
		Interval:     forecast.DefaultInterval,
	}
}

// WarmUp is how long a fresh window takes to reach the training threshold.
func (c Config) WarmUp() time.Duration {
	return time.Duration(c.MinSamples) * c.Interval
}

func (c Config) Validate() error {
	var errs []error
	if c.Capacity < 1 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", c.Capacity))
	}
	if c.MinSamples < 1 {
		errs = append(errs, fmt.Errorf("min samples must be positive, got %d", c.MinSamples))
	}
	if c.MinSamples > c.Capacity {
		errs = append(errs, fmt.Errorf("min samples %d exceeds capacity %d", c.MinSamples, c.Capacity))
	}
	if c.Horizon < 1 {
		errs = append(errs, fmt.Errorf("horizon must be positive, got %d", c.Horizon))
	}
	if c.Display < 1 || c.Display > c.Horizon {
		errs = append(errs, fmt.Errorf("display points must be in 1..%d, got %d", c.Horizon, c.Display))
	}
	if c.BatchHistory < 1 {
		errs = append(errs, fmt.Errorf("batch history must be positive, got %d", c.BatchHistory))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sampling interval must be positive, got %s", c.Interval))
	}
	return errors.Join(errs...)
}
