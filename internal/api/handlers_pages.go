package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lox/weatherpulse/internal/engine"
)

type IndexData struct {
	SnapshotPollMillis int
	HistoryPollMillis  int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := IndexData{
		SnapshotPollMillis: SnapshotPollMillis,
		HistoryPollMillis:  HistoryPollMillis,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("api: template error", "err", err)
	}
}

type HealthStatus struct {
	State string `json:"status"`
	engine.Status
	Stale bool `json:"stale"`
}

// staleAfter is how many missed sampling intervals mark the sensor feed as
// stale.
const staleAfter = 12

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	health := HealthStatus{State: "ok", Status: st}
	if st.WindowSize == 0 {
		health.State = "waiting"
	} else if !st.Trained {
		health.State = "warming_up"
	}
	if !st.LastReading.IsZero() {
		health.Stale = time.Since(st.LastReading) > staleAfter*s.engine.Config().Interval
	}
	writeJSON(w, http.StatusOK, health)
}
