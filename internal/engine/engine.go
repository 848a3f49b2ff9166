// Package engine owns the shared forecasting state: the history window, the
// trend model and the ring of recent forecast batches.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lox/weatherpulse/internal/forecast"
	"github.com/lox/weatherpulse/internal/metrics"
	"github.com/lox/weatherpulse/internal/models"
	"github.com/lox/weatherpulse/internal/window"
)

// Log is the durable append-only sink for readings and forecast points.
// Calls are made while the engine lock is held, so implementations used in
// production should only enqueue.
type Log interface {
	AppendReading(r models.Reading) error
	AppendPredictions(points []models.Prediction) error
}

type nopLog struct{}

func (nopLog) AppendReading(models.Reading) error          { return nil }
func (nopLog) AppendPredictions([]models.Prediction) error { return nil }

type Engine struct {
	cfg        Config
	log        Log
	now        func() time.Time
	forecaster forecast.Forecaster

	mu         sync.Mutex
	history    *window.Ring[models.Reading]
	trainer    *forecast.Trainer
	batches    *window.Ring[models.ForecastBatch]
	batchCount int
	stale      bool // window advanced since the last fit
}

// New returns an engine with an empty window. A nil log discards records.
func New(cfg Config, log Log) *Engine {
	if log == nil {
		log = nopLog{}
	}
	e := &Engine{
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		forecaster: forecast.Forecaster{Horizon: cfg.Horizon, Interval: cfg.Interval},
		history:    window.NewRing[models.Reading](cfg.Capacity),
		trainer:    forecast.NewTrainer(cfg.MinSamples),
		batches:    window.NewRing[models.ForecastBatch](cfg.BatchHistory),
	}
	e.trainer.Now = e.clock
	return e
}

// SetClock replaces the time source used for arrival stamps and forecast
// generation times.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) clock() time.Time {
	return e.now()
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Append stamps the reading with its arrival time, adds it to the window and
// hands it to the durable log. A log failure is reported but the in-memory
// append stands.
func (e *Engine) Append(r models.Reading) models.Reading {
	e.mu.Lock()
	defer e.mu.Unlock()

	r.ReceivedAt = e.now()
	e.history.Push(r)
	e.stale = true
	metrics.WindowSize.Set(float64(e.history.Len()))

	if err := e.log.AppendReading(r); err != nil {
		slog.Error("engine: reading log append failed", "err", err)
	}
	return r
}

// MaybeRetrain refits the trend model when the window has advanced and holds
// at least the minimum number of samples. It reports whether a fit happened.
func (e *Engine) MaybeRetrain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retrainLocked()
}

func (e *Engine) retrainLocked() bool {
	if !e.stale {
		return false
	}
	if !e.trainer.MaybeRetrain(e.history.Snapshot()) {
		return false
	}
	e.stale = false
	metrics.ModelRetrains.Inc()
	slog.Debug("engine: model retrained", "samples", e.history.Len())
	return true
}

// Restore replaces the window with previously logged readings, oldest
// first, and retrains. Nothing is written to the durable log.
func (e *Engine) Restore(readings []models.Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history.Reset()
	e.trainer.Reset()
	for _, r := range readings {
		e.history.Push(r)
	}
	e.stale = true
	metrics.WindowSize.Set(float64(e.history.Len()))
	e.retrainLocked()
}

// RestoreBatchCount seeds the generated-batch counter from the durable log
// so the reported prediction count carries across restarts.
func (e *Engine) RestoreBatchCount(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > e.batchCount {
		e.batchCount = n
	}
}

// Forecast produces a fresh batch from the current window and model. A
// non-empty batch is persisted and pushed onto the display ring exactly
// once. During warm-up the batch is empty.
func (e *Engine) Forecast() models.ForecastBatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forecastLocked(e.history.Snapshot())
}

func (e *Engine) forecastLocked(snap []models.Reading) models.ForecastBatch {
	if e.stale {
		e.retrainLocked()
	}

	generatedAt := e.now()
	points := e.forecaster.Forecast(snap, e.trainer.Current(len(snap)), generatedAt)
	if len(points) == 0 {
		return models.ForecastBatch{GeneratedAt: generatedAt}
	}

	batch := models.ForecastBatch{
		ID:          uuid.NewString(),
		GeneratedAt: generatedAt,
		Points:      points,
	}
	for i := range batch.Points {
		batch.Points[i].BatchID = batch.ID
	}

	e.batches.Push(batch)
	e.batchCount++
	metrics.ForecastBatches.Inc()

	if err := e.log.AppendPredictions(batch.Points); err != nil {
		slog.Error("engine: prediction log append failed", "batch", batch.ID, "err", err)
	}
	return batch
}

// Window returns a copy of the current history, oldest first.
func (e *Engine) Window() []models.Reading {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Snapshot()
}

// Batches returns the most recent forecast batches, oldest first. Points are
// shared with the engine and must not be modified.
func (e *Engine) Batches() []models.ForecastBatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batches.Snapshot()
}

// Status is a point-in-time summary for health checks.
type Status struct {
	WindowSize  int       `json:"window_size"`
	Capacity    int       `json:"capacity"`
	MinSamples  int       `json:"min_samples"`
	Trained     bool      `json:"trained"`
	BatchCount  int       `json:"batch_count"`
	LastReading time.Time `json:"last_reading,omitzero"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		WindowSize: e.history.Len(),
		Capacity:   e.history.Cap(),
		MinSamples: e.cfg.MinSamples,
		Trained:    e.trainer.Current(e.history.Len()) != nil,
		BatchCount: e.batchCount,
	}
	if last, ok := e.history.Last(); ok {
		st.LastReading = last.ReceivedAt
	}
	return st
}
