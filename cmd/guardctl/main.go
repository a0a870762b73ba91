package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/guardtone/internal/config"
	"github.com/danmuck/guardtone/internal/guard"
	"github.com/danmuck/guardtone/internal/observability"
)

// guardctl is the guard daemon. It reads s16le PCM from stdin (the
// microphone pipe) and writes s16le PCM to stdout (the speaker pipe),
// so wiring to real hardware is a shell concern:
//
//	arecord -f S16_LE -r 16000 -c 1 -t raw | \
//	  guardctl -config guardtone.toml | \
//	  aplay -f S16_LE -r 16000 -c 1 -t raw
func main() {
	configPath := flag.String("config", "guardtone.toml", "path to the config file")
	assert := flag.Bool("assert", false, "start with the inhibit assertion active")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := observability.InitLogger("guardctl", observability.LogConfig{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
	})
	logger.Info().Str("path", *configPath).Uint32("device", cfg.DeviceID).Msg("loaded config")

	observability.RegisterMetrics()
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Metrics.Addr, nil); err != nil {
			logger.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics listener stopped")
		}
	}()

	engine, err := guard.New(cfg, os.Stdin, os.Stdout, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build engine")
	}
	engine.SetAsserting(*assert)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGUSR1 toggles the assertion, standing in for the hardware
	// button. SIGINT/SIGTERM shut down.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		for sig := range sigs {
			if sig == syscall.SIGUSR1 {
				next := !engine.Asserting()
				engine.SetAsserting(next)
				logger.Info().Bool("asserting", next).Msg("assertion toggled")
				continue
			}
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
			return
		}
	}()

	if err := engine.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("engine stopped")
	}
	logger.Info().Msg("stopped")
}
