package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/lox/weatherpulse/internal/sensor"
)

type SimulateCmd struct {
	URL      string        `help:"Websocket ingest URL." default:"ws://localhost:8765" env:"SIM_URL"`
	Interval time.Duration `help:"Time between readings." default:"5s" env:"SIM_INTERVAL"`
	BaseTemp float64       `help:"Mean temperature of the synthetic series." default:"20" env:"SIM_BASE_TEMP"`
}

func (c *SimulateCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := sensor.NewSimulator(c.URL, c.Interval)
	sim.BaseTemp = c.BaseTemp
	return sim.Run(ctx)
}
