package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
)

type CLI struct {
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Run the ingest, forecast and dashboard services."`
	Simulate SimulateCmd `cmd:"" help:"Stream synthetic readings to a running server."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("weatherpulse"),
		kong.Description("Online windowed forecasting for weather station readings."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(cli.LogLevel),
		TimeFormat: time.Kitchen,
	})))

	ctx.FatalIfErrorf(ctx.Run())
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
