// Package sensor is a stand-in weather sensor that streams readings to the
// ingest websocket.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/lox/weatherpulse/internal/ingest"
)

const ackWait = 10 * time.Second

// Simulator sends one synthetic reading per Interval and waits for the
// acknowledgment before sending the next. Lost connections are retried with
// exponential backoff until the context ends.
type Simulator struct {
	URL      string
	Interval time.Duration
	BaseTemp float64

	rng  *rand.Rand
	step int
}

func NewSimulator(url string, interval time.Duration) *Simulator {
	return &Simulator{
		URL:      url,
		Interval: interval,
		BaseTemp: 20,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

// Sample returns the payload for the given step: a slow diurnal-ish swing
// with a little noise.
func (s *Simulator) Sample(step int) ingest.Payload {
	phase := float64(step) / 720 * 2 * math.Pi
	temp := s.BaseTemp + 4*math.Sin(phase) + s.noise(0.1)
	pressure := 1013.25 - 2*math.Sin(phase/2) + s.noise(0.05)
	humidity := 55 - 10*math.Sin(phase) + s.noise(0.5)
	altitude := 100 + s.noise(0.2)
	light := math.Max(0, 60*math.Sin(phase)) + s.noise(1)
	return ingest.Payload{
		Temperature: &temp,
		Pressure:    &pressure,
		Humidity:    &humidity,
		Altitude:    &altitude,
		Light:       &light,
	}
}

func (s *Simulator) noise(scale float64) float64 {
	return (s.rng.Float64()*2 - 1) * scale
}

func (s *Simulator) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	operation := func() error {
		err := s.session(ctx, bo)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		slog.Warn("sensor: connection failed, retrying", "url", s.URL, "err", err, "retry_in", next)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Simulator) session(ctx context.Context, bo backoff.BackOff) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	bo.Reset()
	slog.Info("sensor: connected", "url", s.URL)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if err := s.send(conn); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Simulator) send(conn *websocket.Conn) error {
	payload, err := json.Marshal(s.Sample(s.step))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal: %w", err))
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(ackWait))
	_, ack, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if string(ack) != ingest.AckToken {
		slog.Warn("sensor: unexpected reply", "reply", string(ack))
	}
	s.step++
	slog.Debug("sensor: reading sent", "step", s.step)
	return nil
}
