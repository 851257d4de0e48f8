//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

// Package telemetry provides tracing and metrics for the runtime. The
// globals default to noop implementations, so instrumented code works with
// zero setup; Start wires them to an OTLP collector.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	noopm "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	noopt "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Service identity reported to the collector.
const (
	ServiceName      = "hearth"
	ServiceVersion   = "0.1.0"
	ServiceNamespace = "hearthd"

	instrumentName = "hearthd.hearth"
)

// Span names used by the runtime.
const (
	SpanRunTurn     = "run_turn"
	SpanCallLLM     = "call_llm"
	SpanExecuteTool = "execute_tool"
)

// Supported OTLP transport protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

var (
	// Tracer is the global tracer. Noop until Start succeeds.
	Tracer trace.Tracer = noopt.Tracer{}
	// Meter is the global meter. Noop until Start succeeds.
	Meter metric.Meter = noopm.Meter{}
)

// Start connects the global tracer and meter to an OTLP collector and
// returns a cleanup function that flushes and shuts both down.
//
// Endpoints honor OTEL_EXPORTER_OTLP_ENDPOINT and the signal-specific
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT / OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
// variables when no option overrides them.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	options := &options{
		tracesEndpoint:  tracesEndpoint(),
		metricsEndpoint: metricsEndpoint(),
		protocol:        ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(ServiceNamespace),
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var shutdownTracer, shutdownMeter func(context.Context) error
	switch options.protocol {
	case ProtocolHTTP:
		shutdownTracer, shutdownMeter, err = initHTTPProviders(ctx, res, options)
	case ProtocolGRPC:
		shutdownTracer, shutdownMeter, err = initGRPCProviders(ctx, res, options)
	default:
		return nil, fmt.Errorf("unknown OTLP protocol %q", options.protocol)
	}
	if err != nil {
		return nil, err
	}

	Tracer = otel.Tracer(instrumentName)
	Meter = otel.Meter(instrumentName)

	return func() error {
		var err error
		if tracerErr := shutdownTracer(ctx); tracerErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown TracerProvider: %w", tracerErr))
		}
		if meterErr := shutdownMeter(ctx); meterErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown MeterProvider: %w", meterErr))
		}
		return err
	}, nil
}

func initGRPCProviders(ctx context.Context, res *resource.Resource, options *options) (
	shutdownTracer, shutdownMeter func(context.Context) error, err error) {
	tracesConn, err := newConn(options.tracesEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize traces connection: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(tracesConn),
		otlptracegrpc.WithHeaders(options.headers),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	metricsConn := tracesConn
	if options.metricsEndpoint != options.tracesEndpoint {
		metricsConn, err = newConn(options.metricsEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize metrics connection: %w", err)
		}
	}
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithGRPCConn(metricsConn),
		otlpmetricgrpc.WithHeaders(options.headers),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create metrics exporter: %w", err)
	}

	return setupTracerProvider(res, traceExporter), setupMeterProvider(res, metricExporter), nil
}

func initHTTPProviders(ctx context.Context, res *resource.Resource, options *options) (
	shutdownTracer, shutdownMeter func(context.Context) error, err error) {
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(options.tracesEndpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithHeaders(options.headers),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create HTTP trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(options.metricsEndpoint),
		otlpmetrichttp.WithInsecure(),
		otlpmetrichttp.WithHeaders(options.headers),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create HTTP metrics exporter: %w", err)
	}

	return setupTracerProvider(res, traceExporter), setupMeterProvider(res, metricExporter), nil
}

// setupTracerProvider registers the exporter behind a batch span processor
// and installs the provider globally.
func setupTracerProvider(res *resource.Resource, exporter sdktrace.SpanExporter) func(context.Context) error {
	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tracerProvider.Shutdown
}

func setupMeterProvider(res *resource.Resource, exporter sdkmetric.Exporter) func(context.Context) error {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)
	return meterProvider.Shutdown
}

func tracesEndpoint() string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "localhost:4317"
}

func metricsEndpoint() string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return "localhost:4317"
}

func newConn(endpoint string) (*grpc.ClientConn, error) {
	// Insecure transport: the collector is expected on localhost or a
	// private network.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection to collector: %w", err)
	}
	return conn, nil
}

// Option is a function that configures telemetry options.
type Option func(*options)

type options struct {
	tracesEndpoint  string
	metricsEndpoint string
	protocol        string
	headers         map[string]string
}

// WithEndpoint sets both the traces and metrics endpoint (host and port,
// no scheme or path).
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.tracesEndpoint = endpoint
		opts.metricsEndpoint = endpoint
	}
}

// WithTracesEndpoint sets the traces endpoint (host and port) the exporter
// will connect to. Overrides OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and
// OTEL_EXPORTER_OTLP_ENDPOINT.
func WithTracesEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.tracesEndpoint = endpoint
	}
}

// WithMetricsEndpoint sets the metrics endpoint (host and port) the
// exporter will connect to. Overrides OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
// and OTEL_EXPORTER_OTLP_ENDPOINT.
func WithMetricsEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.metricsEndpoint = endpoint
	}
}

// WithProtocol selects the OTLP transport, "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithHeaders sets headers to include in export requests.
func WithHeaders(headers map[string]string) Option {
	return func(opts *options) {
		opts.headers = headers
	}
}
