package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type TelemetryConfig struct {
	// LogHandler is nil unless logs are exported over OTLP.
	LogHandler slog.Handler
	Meter      metric.Meter
	Metrics    struct {
		RenderDuration  metric.Float64Histogram
		StoreDuration   metric.Float64Histogram
		RenderedRunes   metric.Int64Counter
		RateLimitedReqs metric.Int64Counter
	}
	Tracer trace.Tracer
}

// setupTelemetry initializes OTEL tracing, metrics and logging. Without
// OTLP, metrics go to the prometheus registry and spans are sampled but not
// exported.
func setupTelemetry(ctx context.Context, config *Config) (*TelemetryConfig, func(context.Context) error, error) {
	telemetryConfig := &TelemetryConfig{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace("tdformat"),
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTEL resource: %w", err)
	}

	var (
		meterProvider  *sdkmetric.MeterProvider
		traceProvider  *sdktrace.TracerProvider
		logProvider    *sdklog.LoggerProvider
		traceProcessor []sdktrace.TracerProviderOption
	)

	if !config.OTLP {
		prometheusExporter, err := prometheus.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(prometheusExporter),
		)
	} else {
		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTEL metrics exporter: %w", err)
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		)

		logExporter, err := otlploghttp.New(ctx, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log exporter: %w", err)
		}

		var processor sdklog.Processor = sdklog.NewBatchProcessor(logExporter, sdklog.WithExportBufferSize(512))
		severity := minsev.SeverityInfo
		if config.LogDebug {
			severity = minsev.SeverityDebug
		}
		processor = minsev.NewLogProcessor(processor, severity)

		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(processor),
		)
		telemetryConfig.LogHandler = otelslog.NewHandler(config.ServiceName, otelslog.WithLoggerProvider(logProvider))

		traceExporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceProcessor = append(traceProcessor, sdktrace.WithBatcher(traceExporter,
			sdktrace.WithMaxExportBatchSize(config.TraceMaxBatchSize),
		))
	}

	otel.SetMeterProvider(meterProvider)
	telemetryConfig.Meter = meterProvider.Meter(config.ServiceName)

	traceProvider = sdktrace.NewTracerProvider(append(traceProcessor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.TraceSampleRate)),
	)...)
	otel.SetTracerProvider(traceProvider)
	telemetryConfig.Tracer = traceProvider.Tracer(config.ServiceName)

	if config.Logger != nil {
		config.Logger.Info("configured tracer with sampling",
			slog.Float64("rate", config.TraceSampleRate),
			slog.Bool("otlp", config.OTLP))
	}

	if err := initializeMetrics(telemetryConfig); err != nil {
		return nil, nil, err
	}

	cleanup := func(ctx context.Context) error {
		err := errors.Join(meterProvider.Shutdown(ctx), traceProvider.Shutdown(ctx))
		if logProvider != nil {
			err = errors.Join(err, logProvider.Shutdown(ctx))
		}
		return err
	}

	return telemetryConfig, cleanup, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(rate),
			sdktrace.WithRemoteParentSampled(sdktrace.AlwaysSample()),
			sdktrace.WithLocalParentSampled(sdktrace.AlwaysSample()),
		)
	}
}

func initializeMetrics(tc *TelemetryConfig) error {
	var err error

	tc.Metrics.RenderDuration, err = tc.Meter.Float64Histogram("tdformat.render.duration",
		metric.WithDescription("Time spent rendering a preview"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("failed to create render duration histogram: %w", err)
	}

	tc.Metrics.StoreDuration, err = tc.Meter.Float64Histogram("tdformat.store.duration",
		metric.WithDescription("Time spent in message store calls"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	tc.Metrics.RenderedRunes, err = tc.Meter.Int64Counter("tdformat.render.runes",
		metric.WithDescription("Runes of input rendered"))
	if err != nil {
		return fmt.Errorf("failed to create rendered runes counter: %w", err)
	}

	tc.Metrics.RateLimitedReqs, err = tc.Meter.Int64Counter("tdformat.ratelimit.rejected",
		metric.WithDescription("Requests rejected by the preview rate limiter"))
	if err != nil {
		return fmt.Errorf("failed to create rate limit counter: %w", err)
	}

	return nil
}
