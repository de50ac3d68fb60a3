package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tmx"

// Outcome labels shared by the execution and wait counters.
const (
	OutcomeCompleted = "completed" // finished, exit code observed
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error" // transport failure or cancellation
	OutcomeMatched   = "matched"
	OutcomeIdle      = "idle"
)

// Metrics holds all OTEL metric instruments for tmx.
// All counters are cumulative (monotonic) and safe for concurrent use.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Executions counts execute calls, partitioned by outcome.
	Executions metric.Int64Counter

	// Captures counts capture-pane calls made by poll loops, partitioned by depth.
	Captures metric.Int64Counter

	// Waits counts wait-for-text and wait-idle calls, partitioned by kind and outcome.
	Waits metric.Int64Counter

	// ExecutionDuration records how long execute calls took, in seconds.
	ExecutionDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on mp. A nil mp means the
// global provider, which is a no-op until one is registered.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Executions, err = meter.Int64Counter("tmx.executions",
		metric.WithDescription("Total execute calls partitioned by outcome (completed, timeout, error)"))
	if err != nil {
		return nil, err
	}

	m.Captures, err = meter.Int64Counter("tmx.captures",
		metric.WithDescription("Pane captures taken while polling, partitioned by scrollback depth"))
	if err != nil {
		return nil, err
	}

	m.Waits, err = meter.Int64Counter("tmx.waits",
		metric.WithDescription("Total wait calls partitioned by kind (text, idle) and outcome"))
	if err != nil {
		return nil, err
	}

	m.ExecutionDuration, err = meter.Float64Histogram("tmx.execution.duration",
		metric.WithDescription("Wall time of execute calls"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordExecution records one finished execute call.
func (m *Metrics) RecordExecution(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("execution.outcome", outcome))
	m.Executions.Add(ctx, 1, attrs)
	m.ExecutionDuration.Record(ctx, seconds, attrs)
}

// RecordCapture records one capture at the given depth label ("100", "all", ...).
func (m *Metrics) RecordCapture(ctx context.Context, depth string) {
	if m == nil {
		return
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capture.depth", depth),
	))
}

// RecordWait records one finished wait call.
func (m *Metrics) RecordWait(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.Waits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("wait.kind", kind),
		attribute.String("wait.outcome", outcome),
	))
}
