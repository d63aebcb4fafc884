// Package otel configures OpenTelemetry tracing for deltasync processes.
package otel

import (
	"context"
	"strings"

	"github.com/louisbranch/deltasync/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type traceEnv struct {
	Endpoint string `env:"DELTASYNC_OTEL_ENDPOINT"`
	Enabled  string `env:"DELTASYNC_OTEL_ENABLED"`
}

// exportTarget resolves the OTLP endpoint from the environment. Tracing is
// opt-in: an empty endpoint or DELTASYNC_OTEL_ENABLED=false disables export.
func exportTarget() (string, bool) {
	var raw traceEnv
	if err := config.ParseEnv(&raw); err != nil {
		return "", false
	}
	if strings.EqualFold(raw.Enabled, "false") {
		return "", false
	}
	endpoint := strings.TrimSpace(raw.Endpoint)
	return endpoint, endpoint != ""
}

// Setup initialises OpenTelemetry tracing for the given service.
//
// When export is disabled Setup returns a no-op shutdown function and no
// global provider is registered. The returned shutdown function flushes
// pending spans and should be deferred by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	endpoint, enabled := exportTarget()
	if !enabled {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
