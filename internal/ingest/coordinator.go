// Package ingest turns inbound sensor messages into readings on the
// forecasting engine.
package ingest

import (
	"log/slog"

	"github.com/lox/weatherpulse/internal/engine"
	"github.com/lox/weatherpulse/internal/metrics"
	"github.com/lox/weatherpulse/internal/models"
)

// AckToken is sent back to a sender once its reading has been stored.
const AckToken = "OK"

// Coordinator validates messages, appends them to the engine and triggers
// retraining. It is safe for concurrent use by any number of transports.
type Coordinator struct {
	engine *engine.Engine
}

func NewCoordinator(e *engine.Engine) *Coordinator {
	return &Coordinator{engine: e}
}

// Handle processes one message. Malformed input is logged and dropped and
// ack is not called. Otherwise the reading is stored, ack is called, and the
// model is refit if the window is ready. An ack failure is returned after
// retraining; the reading stays stored.
func (c *Coordinator) Handle(transport string, raw []byte, ack func() error) error {
	reading, err := ParseReading(raw)
	if err != nil {
		metrics.ReadingsRejected.WithLabelValues(transport).Inc()
		slog.Warn("ingest: dropping message", "transport", transport, "err", err, "payload", truncate(raw, 200))
		return err
	}

	stored := c.engine.Append(reading)
	metrics.ReadingsIngested.WithLabelValues(transport).Inc()
	logReading(transport, stored)

	var ackErr error
	if ack != nil {
		ackErr = ack()
	}
	c.engine.MaybeRetrain()
	return ackErr
}

func logReading(transport string, r models.Reading) {
	slog.Info("ingest: reading stored",
		"transport", transport,
		"temperature", r.Temperature,
		"pressure", r.Pressure,
		"humidity", r.Humidity,
		"altitude", r.Altitude,
		"light", r.Light,
	)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
