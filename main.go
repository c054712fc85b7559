package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xscrape/internal/app"
	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/logger"
	"github.com/ibeckermayer/xscrape/internal/server"
)

func main() {
	// Bootstrap logger until the configured one exists.
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run - create default config
			cfg = config.Default()
			if err := cfg.Save(); err != nil {
				boot.Warn().Err(err).Msg("could not save default config")
			} else {
				path, _ := config.ConfigPath()
				boot.Info().Str("path", path).Msg("created default config")
			}
			if err := cfg.ApplyEnv(); err != nil {
				boot.Fatal().Err(err).Msg("invalid environment")
			}
		} else {
			boot.Fatal().Err(err).Msg("could not load config")
		}
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid log config")
	}

	rt, err := app.Build(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer rt.Close()

	sched, err := rt.Schedule()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule jobs")
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(rt.Orchestrator, rt.Ledger, rt.Instances, logger.Component(log, "server"))
	log.Info().Msg("xscrape starting...")
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
