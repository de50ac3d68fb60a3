// Package otel provides OpenTelemetry initialization for tmx.
//
// Execute and wait calls export spans and counters to an OTLP endpoint
// (config file, TMX_OTEL_ENDPOINT, or OTEL_EXPORTER_OTLP_ENDPOINT).
// Without an endpoint every instrument is a no-op.
//
// Each tmx invocation is a short-lived process, so the resource carries the
// invocation's run id and tmux socket: that is what ties the spans of one
// CLI call together and separates panes on different tmux servers.
package otel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "tmx"

// Resource attribute keys set from the invocation.
const (
	AttrRunID  = attribute.Key("tmx.run_id")
	AttrSocket = attribute.Key("tmux.socket")
)

// metricInterval is short because the process usually exits within seconds;
// Shutdown flushes whatever the last interval did not.
const metricInterval = 5 * time.Second

// Version is set by the caller (from the linker-injected cmd.Version).
var Version = "dev"

// OTELConfig holds the configuration needed by the OTEL init.
type OTELConfig struct {
	Endpoint string // OTLP base URL, e.g. "http://localhost:4318"
	Headers  string // Comma-separated key=value pairs, e.g. "Authorization=Bearer abc123"

	RunID  string // identifies one tmx invocation
	Socket string // tmux -L socket name; empty is the default server
}

// Telemetry holds the OTEL providers and metric instruments.
type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	Resource *resource.Resource
	Tracer   trace.Tracer
	Metrics  *Metrics
}

// parseHeaders parses a comma-separated "key=value,key2=value2" string into a map.
// This matches the OTEL_EXPORTER_OTLP_HEADERS format.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if ok && key != "" {
			headers[key] = strings.TrimSpace(val)
		}
	}
	return headers
}

// collector is where the OTLP exporters send to.
type collector struct {
	host     string // host:port, as WithEndpoint expects
	basePath string // prefix for /v1/traces and /v1/metrics
	insecure bool
	headers  map[string]string
}

func parseCollector(endpoint, headers string) (collector, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return collector{}, fmt.Errorf("otel: invalid endpoint URL %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return collector{}, fmt.Errorf("otel: endpoint %q has no host", endpoint)
	}
	return collector{
		host:     u.Host,
		basePath: strings.TrimRight(u.Path, "/"),
		insecure: u.Scheme == "http",
		headers:  parseHeaders(headers),
	}, nil
}

func (c collector) traceOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(c.host),
		otlptracehttp.WithURLPath(c.basePath + "/v1/traces"),
	}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(c.headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(c.headers))
	}
	return opts
}

func (c collector) metricOptions() []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(c.host),
		otlpmetrichttp.WithURLPath(c.basePath + "/v1/metrics"),
	}
	if c.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(c.headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(c.headers))
	}
	return opts
}

// newResource describes this invocation: service, version, run id and socket.
func newResource(ctx context.Context, cfg OTELConfig) (*resource.Resource, error) {
	socket := cfg.Socket
	if socket == "" {
		socket = "default"
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(Version),
		AttrSocket.String(socket),
	}
	if cfg.RunID != "" {
		attrs = append(attrs, AttrRunID.String(cfg.RunID), semconv.ServiceInstanceID(cfg.RunID))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
}

// Init initializes OTEL with OTLP HTTP exporters.
// If cfg.Endpoint is empty, the returned Telemetry exports nothing
// (tracer and meters still work, they just don't export anywhere).
func Init(ctx context.Context, cfg OTELConfig) (*Telemetry, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	t := &Telemetry{Resource: res}

	if cfg.Endpoint != "" {
		c, err := parseCollector(cfg.Endpoint, cfg.Headers)
		if err != nil {
			return nil, err
		}

		traceExp, err := otlptracehttp.New(ctx, c.traceOptions()...)
		if err != nil {
			return nil, fmt.Errorf("otel trace exporter: %w", err)
		}
		t.tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExp),
			sdktrace.WithResource(res),
		)

		metricExp, err := otlpmetrichttp.New(ctx, c.metricOptions()...)
		if err != nil {
			return nil, fmt.Errorf("otel metric exporter: %w", err)
		}
		t.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(metricInterval))),
			sdkmetric.WithResource(res),
		)

		otel.SetTracerProvider(t.tp)
		otel.SetMeterProvider(t.mp)
	}

	t.Tracer = otel.Tracer(serviceName)

	var mp metric.MeterProvider = otel.GetMeterProvider()
	if t.mp != nil {
		mp = t.mp
	}
	t.Metrics, err = NewMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	return t, nil
}

// Shutdown flushes and shuts down all OTEL providers.
// A CLI process exits right after one call, so this is what gets spans out.
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t == nil {
		return
	}
	if t.tp != nil {
		_ = t.tp.Shutdown(ctx)
	}
	if t.mp != nil {
		_ = t.mp.Shutdown(ctx)
	}
}
