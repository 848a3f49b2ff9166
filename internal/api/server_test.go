package api_test

import (
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lox/weatherpulse/internal/api"
	"github.com/lox/weatherpulse/internal/engine"
	"github.com/lox/weatherpulse/internal/models"
)

func setupTestServer(t *testing.T, readings int) (*api.Server, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.DefaultConfig(), nil)
	for i := 0; i < readings; i++ {
		e.Append(models.Reading{
			Temperature: 15 + float64(i),
			Pressure:    1013,
			Humidity:    50,
			Altitude:    100,
			Light:       30,
		})
		e.MaybeRetrain()
	}
	return api.NewServer(e, ":0"), e
}

func get(t *testing.T, srv *api.Server, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("GET %s: expected 200, got %d", path, w.Code)
	}
	if v != nil {
		if err := json.NewDecoder(w.Body).Decode(v); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 5)

	var health map[string]any
	get(t, srv, "/health", &health)
	if health["status"] != "warming_up" {
		t.Errorf("status = %v, want warming_up", health["status"])
	}
	if health["window_size"] != float64(5) {
		t.Errorf("window_size = %v, want 5", health["window_size"])
	}
}

func TestDataEndpoint_NoData(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 0)

	var snap engine.Snapshot
	get(t, srv, "/api/data", &snap)
	if snap.Timestamp != engine.WaitingTimestamp {
		t.Errorf("timestamp = %q", snap.Timestamp)
	}
	if snap.IsPredicting || snap.TimeRemaining != 180 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDataEndpoint_Predicting(t *testing.T) {
	t.Parallel()
	srv, e := setupTestServer(t, 36)

	var snap engine.Snapshot
	get(t, srv, "/api/data", &snap)
	if !snap.IsPredicting {
		t.Fatal("expected is_predicting")
	}
	if snap.Temperature != 50 {
		t.Errorf("temperature = %v, want 50", snap.Temperature)
	}
	if math.Abs(snap.PredTemperature-110) > 1e-9 {
		t.Errorf("pred_temperature = %v, want 110", snap.PredTemperature)
	}
	if snap.PredictionCount != 1 || len(e.Batches()) != 1 {
		t.Errorf("prediction_count = %d, batches = %d", snap.PredictionCount, len(e.Batches()))
	}
}

func TestHistoryEndpoint_WarmUp(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 3)

	var raw map[string]json.RawMessage
	get(t, srv, "/api/history", &raw)
	if string(raw["is_predicting"]) != "false" {
		t.Errorf("is_predicting = %s", raw["is_predicting"])
	}
	if string(raw["pred_temperatures"]) != "[]" {
		t.Errorf("pred_temperatures = %s, want []", raw["pred_temperatures"])
	}

	var temps []float64
	if err := json.Unmarshal(raw["temperatures"], &temps); err != nil {
		t.Fatal(err)
	}
	if len(temps) != 3 {
		t.Errorf("len(temperatures) = %d, want 3", len(temps))
	}
}

func TestHistoryEndpoint_Predicting(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 36)

	var hf engine.HistoryForecast
	get(t, srv, "/api/history", &hf)
	if !hf.IsPredicting {
		t.Fatal("expected is_predicting")
	}
	if len(hf.PredTemperatures) != 12 || len(hf.PredTimestamps) != 12 {
		t.Fatalf("forecast lengths = %d/%d", len(hf.PredTemperatures), len(hf.PredTimestamps))
	}
	if math.Abs(hf.PredTemperatures[0]-51) > 1e-9 {
		t.Errorf("first forecast = %v, want 51", hf.PredTemperatures[0])
	}
	if len(hf.Temperatures) != 12 {
		t.Errorf("len(temperatures) = %d, want 12", len(hf.Temperatures))
	}
}

func TestBatchesEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 36)
	get(t, srv, "/api/data", nil)
	get(t, srv, "/api/history", nil)

	var batches []api.BatchSummary
	get(t, srv, "/api/batches", &batches)
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
	if !batches[0].GeneratedAt.After(batches[1].GeneratedAt) && !batches[0].GeneratedAt.Equal(batches[1].GeneratedAt) {
		t.Error("batches not newest first")
	}
	if batches[0].Points != 60 || len(batches[0].Temperature) != 12 {
		t.Errorf("batch = %+v", batches[0])
	}
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 0)

	w := get(t, srv, "/", nil)
	body := w.Body.String()
	if !strings.Contains(body, "<title>Weather Station</title>") {
		t.Error("expected page title")
	}
	if !strings.Contains(body, "updateValues") || !strings.Contains(body, "2000") {
		t.Error("expected snapshot poll interval")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t, 1)

	w := get(t, srv, "/metrics", nil)
	if !strings.Contains(w.Body.String(), "weatherpulse_window_size") {
		t.Error("expected weatherpulse_window_size metric")
	}
}
