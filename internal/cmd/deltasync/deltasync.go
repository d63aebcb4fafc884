// Package deltasync parses sync gateway flags and launches the service.
package deltasync

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/deltasync/internal/platform/cmd"
	"github.com/louisbranch/deltasync/internal/server"
)

// Config holds deltasync command configuration.
type Config struct {
	Port int `env:"DELTASYNC_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The sync gateway HTTP port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the sync gateway HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDeltasync, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
