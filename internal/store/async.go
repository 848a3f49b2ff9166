package store

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/weatherpulse/internal/metrics"
	"github.com/lox/weatherpulse/internal/models"
)

// ErrQueueFull is returned when a record is dropped because the writer has
// fallen behind.
var ErrQueueFull = errors.New("durable log queue full")

var errClosed = errors.New("durable log closed")

// Sink is anything that can durably append readings and forecast points.
type Sink interface {
	AppendReading(r models.Reading) error
	AppendPredictions(points []models.Prediction) error
}

type record struct {
	reading *models.Reading
	points  []models.Prediction
}

func (r record) kind() string {
	if r.reading != nil {
		return "readings"
	}
	return "predictions"
}

// AsyncLog queues records for a single writer goroutine so callers never
// wait on disk. Failed writes are retried with exponential backoff for up
// to MaxElapsed before being dropped.
type AsyncLog struct {
	next       Sink
	queue      chan record
	done       chan struct{}
	maxElapsed time.Duration
	initial    time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewAsyncLog(next Sink, queueSize int, maxElapsed time.Duration) *AsyncLog {
	a := &AsyncLog{
		next:       next,
		queue:      make(chan record, queueSize),
		done:       make(chan struct{}),
		maxElapsed: maxElapsed,
		initial:    backoff.DefaultInitialInterval,
	}
	go a.run()
	return a
}

func (a *AsyncLog) AppendReading(r models.Reading) error {
	return a.enqueue(record{reading: &r})
}

func (a *AsyncLog) AppendPredictions(points []models.Prediction) error {
	return a.enqueue(record{points: slices.Clone(points)})
}

func (a *AsyncLog) enqueue(rec record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return errClosed
	}
	select {
	case a.queue <- rec:
		return nil
	default:
		metrics.LogRecordsDropped.WithLabelValues(rec.kind()).Inc()
		return ErrQueueFull
	}
}

func (a *AsyncLog) run() {
	defer close(a.done)
	for rec := range a.queue {
		a.write(rec)
	}
}

func (a *AsyncLog) write(rec record) {
	kind := rec.kind()
	operation := func() error {
		if rec.reading != nil {
			return a.next.AppendReading(*rec.reading)
		}
		return a.next.AppendPredictions(rec.points)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.initial
	bo.MaxElapsedTime = a.maxElapsed

	start := time.Now()
	err := backoff.RetryNotify(operation, bo, func(err error, next time.Duration) {
		slog.Warn("store: durable write failed, retrying", "log", kind, "err", err, "retry_in", next)
	})
	metrics.LogWriteLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LogWriteFailures.WithLabelValues(kind).Inc()
		slog.Error("store: durable write abandoned", "log", kind, "err", err)
	}
}

// Close stops accepting records and waits for queued ones to be written.
func (a *AsyncLog) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

// Multi fans every record out to several sinks. Wrap each sink in its own
// AsyncLog rather than wrapping a Multi, so a retry does not duplicate rows
// in the sinks that succeeded.
type Multi []Sink

func (m Multi) AppendReading(r models.Reading) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.AppendReading(r))
	}
	return errors.Join(errs...)
}

func (m Multi) AppendPredictions(points []models.Prediction) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.AppendPredictions(points))
	}
	return errors.Join(errs...)
}
