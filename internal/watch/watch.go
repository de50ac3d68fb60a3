// Package watch polls pane content until a pattern shows up or the pane settles.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/timvw/tmx/internal/events"
	"github.com/timvw/tmx/internal/model"
	"github.com/timvw/tmx/internal/mux"
	tmxotel "github.com/timvw/tmx/internal/otel"
	"github.com/timvw/tmx/internal/poll"
)

const (
	DefaultTextTimeout = 15 * time.Second
	DefaultIdleTime    = 2 * time.Second
	DefaultIdleTimeout = 30 * time.Second
	DefaultInterval    = 500 * time.Millisecond
	DefaultLines       = 1000
)

// Capturer captures pane content.
type Capturer interface {
	CapturePane(ctx context.Context, target string, opts mux.CaptureOptions) (string, error)
}

// TextOptions tunes WaitForText. Zero fields take the defaults.
type TextOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	Lines    int
}

func (o TextOptions) withDefaults() TextOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTextTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Lines == 0 {
		o.Lines = DefaultLines
	}
	return o
}

// IdleOptions tunes WaitIdle. Zero fields take the defaults.
type IdleOptions struct {
	// IdleTime is how long content must stay unchanged to count as idle.
	IdleTime time.Duration
	Timeout  time.Duration
	Interval time.Duration
	Lines    int
}

func (o IdleOptions) withDefaults() IdleOptions {
	if o.IdleTime <= 0 {
		o.IdleTime = DefaultIdleTime
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultIdleTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Lines == 0 {
		o.Lines = DefaultLines
	}
	return o
}

// Watcher polls panes through Pane.
type Watcher struct {
	Pane Capturer

	// Clock drives deadlines and sleeps. Nil means the wall clock.
	Clock poll.Clock

	Tracer  trace.Tracer
	Metrics *tmxotel.Metrics
	Logger  *slog.Logger

	// Events, when set, receives an idle event once WaitIdle sees the pane settle.
	Events *events.Emitter
}

// WaitForText polls target until a line matches pattern or the timeout passes.
// Lines are matched one at a time, so patterns never straddle a line break.
// An invalid pattern is an error; not matching in time is a result with Matched false.
func (w *Watcher) WaitForText(ctx context.Context, target, pattern string, opts TextOptions) (*model.WaitResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	opts = opts.withDefaults()
	clock := poll.OrSystem(w.Clock)

	ctx, span := w.tracer().Start(ctx, "wait_for_text", trace.WithAttributes(
		attribute.String("pane.target", target),
		attribute.String("wait.pattern", pattern),
	))
	defer span.End()

	start := clock.Now()
	deadline := start.Add(opts.Timeout)
	var last string
	for {
		last, err = w.capture(ctx, target, opts.Lines)
		if err != nil {
			span.RecordError(err)
			w.Metrics.RecordWait(ctx, "text", tmxotel.OutcomeError)
			return nil, err
		}
		if line, ok := matchLine(re, last); ok {
			elapsed := clock.Now().Sub(start)
			span.SetAttributes(attribute.Bool("wait.matched", true))
			w.Metrics.RecordWait(ctx, "text", tmxotel.OutcomeMatched)
			w.logger().Debug("pattern matched", "target", target, "line", line, "elapsed", elapsed)
			return &model.WaitResult{Matched: true, Match: line, Elapsed: elapsed, LastCapture: last}, nil
		}

		if err := sleepUntil(ctx, clock, deadline, opts.Interval); err != nil {
			if errors.Is(err, errDeadline) {
				break
			}
			return nil, err
		}
	}

	span.SetAttributes(attribute.Bool("wait.matched", false))
	w.Metrics.RecordWait(ctx, "text", tmxotel.OutcomeTimeout)
	return &model.WaitResult{Elapsed: clock.Now().Sub(start), LastCapture: last}, nil
}

// WaitIdle polls target until its content stays unchanged for IdleTime.
// Content is compared by hash; only whether anything changed matters.
func (w *Watcher) WaitIdle(ctx context.Context, target string, opts IdleOptions) (*model.IdleResult, error) {
	opts = opts.withDefaults()
	clock := poll.OrSystem(w.Clock)

	ctx, span := w.tracer().Start(ctx, "wait_idle", trace.WithAttributes(
		attribute.String("pane.target", target),
		attribute.Float64("wait.idle_time_s", opts.IdleTime.Seconds()),
	))
	defer span.End()

	start := clock.Now()
	deadline := start.Add(opts.Timeout)
	lastChangedAt := start
	var (
		lastHash uint64
		seen     bool
		last     string
	)
	for {
		var err error
		last, err = w.capture(ctx, target, opts.Lines)
		if err != nil {
			span.RecordError(err)
			w.Metrics.RecordWait(ctx, "idle", tmxotel.OutcomeError)
			return nil, err
		}

		now := clock.Now()
		h := xxhash.Sum64String(last)
		switch {
		case !seen || h != lastHash:
			lastHash, seen = h, true
			lastChangedAt = now
		case now.Sub(lastChangedAt) >= opts.IdleTime:
			elapsed := now.Sub(start)
			span.SetAttributes(attribute.Bool("wait.idle", true))
			w.Metrics.RecordWait(ctx, "idle", tmxotel.OutcomeIdle)
			w.logger().Debug("pane idle", "target", target, "elapsed", elapsed)
			if err := w.Events.Emit(events.StateIdle, target, fmt.Sprintf("idle after %s", elapsed)); err != nil {
				w.logger().Warn("emit event", "state", events.StateIdle, "error", err)
			}
			return &model.IdleResult{Idle: true, Elapsed: elapsed, LastCapture: last}, nil
		}

		if err := sleepUntil(ctx, clock, deadline, opts.Interval); err != nil {
			if errors.Is(err, errDeadline) {
				break
			}
			return nil, err
		}
	}

	span.SetAttributes(attribute.Bool("wait.idle", false))
	w.Metrics.RecordWait(ctx, "idle", tmxotel.OutcomeTimeout)
	return &model.IdleResult{Elapsed: clock.Now().Sub(start), LastCapture: last}, nil
}

var errDeadline = errors.New("deadline reached")

// sleepUntil sleeps for interval, cut short at deadline. It returns
// errDeadline once the deadline had already passed before sleeping.
func sleepUntil(ctx context.Context, clock poll.Clock, deadline time.Time, interval time.Duration) error {
	remaining := deadline.Sub(clock.Now())
	if remaining <= 0 {
		return errDeadline
	}
	if interval > remaining {
		interval = remaining
	}
	return clock.Sleep(ctx, interval)
}

func matchLine(re *regexp.Regexp, content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

func (w *Watcher) capture(ctx context.Context, target string, lines int) (string, error) {
	w.Metrics.RecordCapture(ctx, mux.DepthLabel(lines))
	out, err := w.Pane.CapturePane(ctx, target, mux.CaptureOptions{Lines: lines})
	if err != nil {
		return "", fmt.Errorf("capture pane: %w", err)
	}
	return out, nil
}

func (w *Watcher) tracer() trace.Tracer {
	if w.Tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return w.Tracer
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}
