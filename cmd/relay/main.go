package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/meetwire/meetwire/internal/app"
	"github.com/meetwire/meetwire/internal/config"
	applog "github.com/meetwire/meetwire/internal/log"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	bootLog := applog.New("info")
	cfg, path, err := config.Load(bootLog, *configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", path, err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logger := applog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting meetwire relay")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("relay exited with error")
	}
	logger.Info().Msg("relay stopped")
}
