package ingest

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/lox/weatherpulse/internal/engine"
)

func setupTestCoordinator(t *testing.T) (*Coordinator, *engine.Engine) {
	t.Helper()
	e := engine.New(engine.DefaultConfig(), nil)
	return NewCoordinator(e), e
}

func TestCoordinator_AcksValidReading(t *testing.T) {
	c, e := setupTestCoordinator(t)

	acks := 0
	err := c.Handle("test", []byte(`{"temperature": 20, "pressure": 1013, "light": 50}`), func() error {
		acks++
		if got := len(e.Window()); got != 1 {
			t.Errorf("window size at ack = %d, want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if acks != 1 {
		t.Errorf("acks = %d, want 1", acks)
	}
	r := e.Window()[0]
	if r.Humidity != 50 || r.Altitude != 0 {
		t.Errorf("defaults not applied: %+v", r)
	}
	if r.ReceivedAt.IsZero() {
		t.Error("arrival time not stamped")
	}
}

func TestCoordinator_MalformedIsDroppedWithoutAck(t *testing.T) {
	c, e := setupTestCoordinator(t)
	c.Handle("test", []byte(`{"temperature": 20, "pressure": 1013, "light": 50}`), nil)

	acked := false
	err := c.Handle("test", []byte(`{"temperature": 20, "light": 50}`), func() error {
		acked = true
		return nil
	})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if acked {
		t.Error("malformed message was acknowledged")
	}
	if got := len(e.Window()); got != 1 {
		t.Errorf("window size = %d, want 1", got)
	}
}

func TestCoordinator_AckFailureKeepsReading(t *testing.T) {
	c, e := setupTestCoordinator(t)
	err := c.Handle("test", []byte(`{"temperature": 20, "pressure": 1013, "light": 50}`), func() error {
		return errors.New("broken pipe")
	})
	if err == nil {
		t.Fatal("expected ack error")
	}
	if got := len(e.Window()); got != 1 {
		t.Errorf("window size = %d, want 1", got)
	}
}

func TestCoordinator_EndToEnd(t *testing.T) {
	c, e := setupTestCoordinator(t)

	for i := 0; i < 36; i++ {
		msg := fmt.Sprintf(`{"temperature": %v, "pressure": 1013.0, "humidity": 50.0, "altitude": 100.0, "light": 10}`, 15+float64(i))
		if err := c.Handle("test", []byte(msg), nil); err != nil {
			t.Fatalf("reading %d: %v", i, err)
		}
	}

	hf := e.HistoryForecast()
	if !hf.IsPredicting {
		t.Fatal("IsPredicting = false after 36 readings")
	}
	if len(hf.PredTemperatures) != 12 {
		t.Fatalf("len(PredTemperatures) = %d, want 12", len(hf.PredTemperatures))
	}
	for i, v := range hf.PredTemperatures {
		if want := 51 + float64(i); math.Abs(v-want) > 1e-9 {
			t.Errorf("pred temperature %d = %v, want %v", i, v, want)
		}
		if i > 0 && math.Abs(v-hf.PredTemperatures[i-1]-1) > 1e-9 {
			t.Errorf("step %d = %v, want 1", i, v-hf.PredTemperatures[i-1])
		}
	}
	for i := range hf.PredPressures {
		if math.Abs(hf.PredPressures[i]-1013) > 1e-9 ||
			math.Abs(hf.PredHumidities[i]-50) > 1e-9 ||
			math.Abs(hf.PredAltitudes[i]-100) > 1e-9 {
			t.Errorf("point %d not constant", i)
		}
	}
}
