package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type gatewayConfig struct {
	Port   int    `env:"DELTASYNC_TEST_PORT" envDefault:"8080"`
	DBPath string `env:"DELTASYNC_TEST_DB_PATH" envDefault:"deltasync.db"`
}

func TestParseConfigLayersFlagsOverEnv(t *testing.T) {
	t.Setenv("DELTASYNC_TEST_PORT", "9100")
	t.Setenv("DELTASYNC_TEST_DB_PATH", "/var/lib/deltasync/sync.db")

	var cfg gatewayConfig
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load env defaults: %v", err)
	}
	fs := flag.NewFlagSet("deltasync", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "db path")

	if err := ParseArgs(fs, []string{"-port", "9200"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.Port != 9200 {
		t.Fatalf("port = %d, want flag value 9200", cfg.Port)
	}
	if cfg.DBPath != "/var/lib/deltasync/sync.db" {
		t.Fatalf("db path = %q, want env value", cfg.DBPath)
	}
}

func TestParseConfigFromArgs(t *testing.T) {
	t.Setenv("DELTASYNC_TEST_PORT", "9300")

	var cfg gatewayConfig
	fs := flag.NewFlagSet("deltasync", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 0, "port")
	if err := ParseConfigFromArgs(&cfg, fs, nil); err != nil {
		t.Fatalf("parse config from args: %v", err)
	}
	if cfg.Port != 9300 {
		t.Fatalf("port = %d, want env value 9300 when flag is absent", cfg.Port)
	}
	if cfg.DBPath != "deltasync.db" {
		t.Fatalf("db path = %q, want env default", cfg.DBPath)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[gatewayConfig](nil); err == nil {
		t.Fatal("expected nil config target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected nil flag parser error")
	}
}

func TestRunWithTelemetryValidatesInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), " ", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected blank service name error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceDeltasync, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryPropagatesRunError(t *testing.T) {
	t.Setenv("DELTASYNC_OTEL_ENDPOINT", "")

	wantErr := errors.New("listener failed")
	err := RunWithTelemetry(context.Background(), ServiceDeltasync, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
