package telemetry

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dunamismax/enlarge/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultServiceName = "enlarge"

// stdoutTarget receives stdout spans; stdout itself carries the run log.
var stdoutTarget io.Writer = os.Stderr

// SetupTracing installs the global tracer provider for cfg.Exporter and
// returns its shutdown func. Exporter "none" leaves the no-op provider in place.
func SetupTracing(ctx context.Context, cfg config.TraceConfig, logger *log.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	kind := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	exp, err := newSpanExporter(ctx, kind, cfg)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		if logger != nil {
			logger.Printf("tracing exporter disabled")
		}
		return func(context.Context) error { return nil }, nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	// A run is short-lived; each span is exported when it ends.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	if logger != nil {
		logger.Printf("tracing exporter enabled type=%s service=%s", kind, serviceName)
	}

	return tp.Shutdown, nil
}

// newSpanExporter returns a nil exporter when tracing is off.
func newSpanExporter(ctx context.Context, kind string, cfg config.TraceConfig) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)

	switch kind {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithWriter(stdoutTarget), stdouttrace.WithPrettyPrint())
	case "otlp":
		endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
		if endpoint == "" {
			return nil, fmt.Errorf("otlp trace exporter requires endpoint")
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", kind, err)
	}
	return exp, nil
}
