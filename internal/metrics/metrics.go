package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpulse_readings_ingested_total",
			Help: "Total readings accepted into the history window",
		},
		[]string{"transport"},
	)

	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpulse_readings_rejected_total",
			Help: "Total inbound messages dropped as malformed",
		},
		[]string{"transport"},
	)

	ModelRetrains = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherpulse_model_retrains_total",
			Help: "Total trend model refits",
		},
	)

	ForecastBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherpulse_forecast_batches_total",
			Help: "Total non-empty forecast batches generated",
		},
	)

	WindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherpulse_window_size",
			Help: "Readings currently held in the history window",
		},
	)

	IngestConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "weatherpulse_ingest_connections",
			Help: "Open websocket sensor connections",
		},
	)

	LogWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpulse_log_write_failures_total",
			Help: "Durable log writes that failed after retries",
		},
		[]string{"log"},
	)

	LogRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpulse_log_records_dropped_total",
			Help: "Durable log records dropped because the write queue was full",
		},
		[]string{"log"},
	)

	LogWriteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherpulse_log_write_latency_seconds",
			Help:    "Durable log write latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"log"},
	)
)
