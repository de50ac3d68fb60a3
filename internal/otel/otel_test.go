package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"Authorization=Bearer abc", map[string]string{"Authorization": "Bearer abc"}},
		{" a = 1 , b=2=3 ,,=skip", map[string]string{"a": "1", "b": "2=3"}},
	}

	for _, tt := range tests {
		got := parseHeaders(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("parseHeaders(%q): got %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("parseHeaders(%q)[%q]: got %q, want %q", tt.raw, k, got[k], v)
			}
		}
	}
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	tel, err := Init(context.Background(), OTELConfig{})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("Init() should return a usable tracer and metrics without an endpoint")
	}

	ctx := context.Background()
	tel.Metrics.RecordExecution(ctx, OutcomeCompleted, 0.5)
	tel.Metrics.RecordCapture(ctx, "100")
	tel.Metrics.RecordWait(ctx, "text", OutcomeMatched)
	tel.Shutdown(ctx)
}

func TestInit_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"://bad", "localhost-no-scheme"} {
		if _, err := Init(context.Background(), OTELConfig{Endpoint: endpoint}); err == nil {
			t.Errorf("Init(%q): expected error for invalid endpoint URL", endpoint)
		}
	}
}

func TestInit_ResourceDescribesInvocation(t *testing.T) {
	tel, err := Init(context.Background(), OTELConfig{RunID: "run-1234", Socket: "agents"})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	want := map[attribute.Key]string{
		semconv.ServiceNameKey:       "tmx",
		AttrRunID:                    "run-1234",
		AttrSocket:                   "agents",
		semconv.ServiceInstanceIDKey: "run-1234",
	}
	set := tel.Resource.Set()
	for key, val := range want {
		got, ok := set.Value(key)
		if !ok || got.AsString() != val {
			t.Errorf("resource %s: got %q (present=%v), want %q", key, got.AsString(), ok, val)
		}
	}
}

func TestInit_ResourceDefaultSocket(t *testing.T) {
	tel, err := Init(context.Background(), OTELConfig{})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if got, _ := tel.Resource.Set().Value(AttrSocket); got.AsString() != "default" {
		t.Errorf("resource %s: got %q, want %q", AttrSocket, got.AsString(), "default")
	}
	if _, ok := tel.Resource.Set().Value(AttrRunID); ok {
		t.Errorf("resource %s should be absent without a run id", AttrRunID)
	}
}

func TestParseCollector(t *testing.T) {
	tests := []struct {
		endpoint string
		headers  string
		want     collector
	}{
		{
			endpoint: "http://localhost:4318",
			want:     collector{host: "localhost:4318", insecure: true, headers: map[string]string{}},
		},
		{
			endpoint: "https://otel.example.com/otlp/",
			headers:  "Authorization=Bearer abc",
			want: collector{
				host:     "otel.example.com",
				basePath: "/otlp",
				headers:  map[string]string{"Authorization": "Bearer abc"},
			},
		},
	}
	for _, tt := range tests {
		got, err := parseCollector(tt.endpoint, tt.headers)
		if err != nil {
			t.Fatalf("parseCollector(%q) error: %v", tt.endpoint, err)
		}
		if got.host != tt.want.host || got.basePath != tt.want.basePath || got.insecure != tt.want.insecure {
			t.Errorf("parseCollector(%q): got %+v, want %+v", tt.endpoint, got, tt.want)
		}
		if len(got.headers) != len(tt.want.headers) || got.headers["Authorization"] != tt.want.headers["Authorization"] {
			t.Errorf("parseCollector(%q) headers: got %v, want %v", tt.endpoint, got.headers, tt.want.headers)
		}
		if n := len(got.traceOptions()); n < 2 {
			t.Errorf("traceOptions(): got %d options, want endpoint and path at least", n)
		}
	}
}

func TestNewMetrics_OnGivenProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics() error: %v", err)
	}
	ctx := context.Background()
	m.RecordCapture(ctx, "all")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error: %v", err)
	}
	if !hasMetric(rm, "tmx.captures") {
		t.Fatal("expected tmx.captures to be recorded on the given provider")
	}
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordExecution(ctx, OutcomeTimeout, 30)
	m.RecordCapture(ctx, "all")
	m.RecordWait(ctx, "idle", OutcomeIdle)

	var tel *Telemetry
	tel.Shutdown(ctx)
}
