package config

import (
	"context"
	"fmt"

	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
)

// PrintHelp prints usage for the dispatch binary.
func PrintHelp() {
	fmt.Println(`Usage: dispatch -mode=<mode> [-config-path=<path>]

Modes:
  ride-service    ride intake, ledger reads and the dispatch coordinator
  driver-service  driver actions, presence and assignment visibility

Configuration is read from the yaml file (default config.yaml) and the
environment; environment variables win. See config/config.go for the list.`)
}

// PrintConfig logs the effective, non-secret configuration at startup.
func PrintConfig(cfg *Config, log logger.Logger) {
	log.Info(context.Background(), "configuration loaded",
		"mode", string(cfg.Mode),
		"policy", cfg.Dispatch.Policy,
		"database_host", cfg.Database.Host,
		"rabbitmq_host", cfg.RabbitMQ.Host,
		"redis_addr", cfg.Redis.GetAddr(),
		"ride_port", cfg.Services.RideService,
		"driver_port", cfg.Services.DriverService,
	)
}
