package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"restaurant-billing/internal/common/config"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/ledger/postgres"
	"restaurant-billing/internal/microservices/kitchen"
	"restaurant-billing/internal/microservices/notificator"
	"restaurant-billing/internal/microservices/reporting"
	"restaurant-billing/internal/microservices/tab"
)

const modes = "tab-service | kitchen-worker | notification-subscriber | reporting-service | migrate"

func main() {
	mode := flag.String("mode", "", modes)
	cfgPath := flag.String("config", "", "path to YAML config (default: config.yaml, then deploy/config.example.yaml)")
	port := flag.Int("port", 0, "http port for tab-service or reporting-service")
	workerName := flag.String("worker-name", "", "kitchen-worker: unique worker name")
	prefetch := flag.Int("prefetch", 0, "kitchen-worker: RabbitMQ prefetch")
	heartbeat := flag.Int("heartbeat-interval", 0, "kitchen-worker: heartbeat interval seconds")
	flag.Parse()

	lg := logger.New("bootstrap")

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": *cfgPath})
		os.Exit(2)
	}
	if err := logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	}); err != nil {
		lg.Error("logger_setup_failed", err, nil)
		os.Exit(2)
	}
	if *prefetch > 0 {
		cfg.Kitchen.Prefetch = *prefetch
	}
	if *heartbeat > 0 {
		cfg.Kitchen.HeartbeatInterval = *heartbeat
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "tab-service":
		if *port != 0 {
			cfg.HTTP.TabPort = *port
		}
		err = tab.Run(ctx, cfg, logger.New("tab-service"))
	case "kitchen-worker":
		if *workerName == "" {
			fmt.Fprintln(os.Stderr, "--worker-name is required for kitchen-worker")
			os.Exit(2)
		}
		err = kitchen.Run(ctx, cfg, logger.New("kitchen-worker"), *workerName)
	case "notification-subscriber":
		err = notificator.Start(ctx, cfg, logger.New("notification-subscriber"))
	case "reporting-service":
		if *port != 0 {
			cfg.HTTP.ReportingPort = *port
		}
		err = reporting.Start(ctx, cfg, logger.New("reporting-service"))
	case "migrate":
		err = postgres.Migrate(cfg.Database.DSN(), logger.New("migrate"))
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		os.Exit(1)
	}
	lg.Info("service_stopped", map[string]any{"mode": *mode})
}

func loadConfig(path string) (config.App, error) {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil {
			return config.App{}, fmt.Errorf("no config file found: %w", err)
		}
		path = found
	}
	return config.Load(path)
}
