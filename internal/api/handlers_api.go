package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lox/weatherpulse/internal/forecast"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

// handleAPIData serves the live snapshot. Each call runs a fresh forecast,
// which is persisted when the model is trained.
func (s *Server) handleAPIData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// handleAPIHistory serves the chart series: recent readings and the head of
// a fresh forecast.
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.HistoryForecast())
}

type BatchSummary struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Points      int       `json:"points"`
	FirstTarget time.Time `json:"first_target"`
	LastTarget  time.Time `json:"last_target"`
	Temperature []float64 `json:"temperature"`
}

// handleAPIBatches lists the forecast batches held for display, newest
// first, with their display-truncated temperature series.
func (s *Server) handleAPIBatches(w http.ResponseWriter, r *http.Request) {
	batches := s.engine.Batches()
	display := s.engine.Config().Display

	out := make([]BatchSummary, 0, len(batches))
	for i := len(batches) - 1; i >= 0; i-- {
		b := batches[i]
		last, _ := b.Last()
		shown := forecast.Truncate(b.Points, display)
		temps := make([]float64, len(shown))
		for j, p := range shown {
			temps[j] = p.Temperature
		}
		out = append(out, BatchSummary{
			ID:          b.ID,
			GeneratedAt: b.GeneratedAt,
			Points:      len(b.Points),
			FirstTarget: b.Points[0].TargetTime,
			LastTarget:  last.TargetTime,
			Temperature: temps,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
