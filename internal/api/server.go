package api

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/weatherpulse/internal/engine"
)

// Dashboard poll intervals, in milliseconds, handed to the page.
const (
	SnapshotPollMillis = 2000
	HistoryPollMillis  = 5000
)

type Server struct {
	engine    *engine.Engine
	addr      string
	tmpl      *template.Template
	accessLog bool
}

func NewServer(e *engine.Engine, addr string) *Server {
	return &Server{
		engine: e,
		addr:   addr,
		tmpl:   newTemplates(),
	}
}

// EnableAccessLog writes an Apache-style access log for every request to
// stdout.
func (s *Server) EnableAccessLog() {
	s.accessLog = true
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/data", s.handleAPIData).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleAPIHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/batches", s.handleAPIBatches).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	if s.accessLog {
		h = handlers.LoggingHandler(os.Stdout, h)
	}
	return h
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("api: dashboard listening", "addr", s.addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
