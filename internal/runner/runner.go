// Package runner executes shell commands in a tmux pane synchronously.
//
// A pane has no notion of "command finished". The engine wraps the command in
// start/end markers, types it into the pane, then polls captures of the pane
// until the end marker with its exit code shows up or the deadline passes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/timvw/tmx/internal/events"
	"github.com/timvw/tmx/internal/marker"
	"github.com/timvw/tmx/internal/model"
	"github.com/timvw/tmx/internal/mux"
	tmxotel "github.com/timvw/tmx/internal/otel"
	"github.com/timvw/tmx/internal/poll"
)

// DefaultLevels is the scrollback depth ladder walked on every tick.
// Most commands finish with little output, so the shallow captures usually suffice.
var DefaultLevels = []int{100, 500, 2000, mux.AllHistory}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultInterval  = 500 * time.Millisecond
	DefaultSendDelay = 100 * time.Millisecond
)

// Pane is the slice of the multiplexer the engine needs.
type Pane interface {
	SendKeys(ctx context.Context, opts mux.SendKeysOptions) error
	CapturePane(ctx context.Context, target string, opts mux.CaptureOptions) (string, error)
}

// Locker serialises executions against one pane.
type Locker interface {
	Lock(ctx context.Context, target string) (release func() error, err error)
}

// Options tunes a single Execute call. Zero fields take the defaults.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	// SendDelay is the pause between typing the command and pressing Enter.
	SendDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.SendDelay <= 0 {
		o.SendDelay = DefaultSendDelay
	}
	return o
}

// Engine runs commands in panes. It holds no per-call state, so one Engine
// may serve concurrent calls on distinct panes.
type Engine struct {
	Pane Pane

	// Clock drives deadlines and sleeps. Nil means the wall clock.
	Clock poll.Clock
	// Levels overrides DefaultLevels. The last level is used for the final attempt.
	Levels []int

	Tracer  trace.Tracer
	Metrics *tmxotel.Metrics
	Logger  *slog.Logger

	// Locker, when set, is held for the whole call.
	Locker Locker
	// Events, when set, receives running and completed/error events.
	Events *events.Emitter
}

// state is where an execution stands in its poll loop.
type state int

const (
	statePolling state = iota
	stateSucceeded
	stateTimedOut
)

func (s state) String() string {
	switch s {
	case statePolling:
		return "polling"
	case stateSucceeded:
		return "succeeded"
	case stateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// execution is the per-call state of one Execute.
type execution struct {
	target   string
	markers  marker.Markers
	start    time.Time
	deadline time.Time
	state    state
	parsed   marker.Parsed
	ticks    int
}

// Execute types command into target and waits for it to finish.
//
// A finished command yields its output and real exit code. If the deadline
// passes first the result has ExitCode model.ExitCodeTimeout and no error.
// Transport failures and context cancellation are returned as errors.
func (e *Engine) Execute(ctx context.Context, target, command string, opts Options) (*model.ExecutionResult, error) {
	opts = opts.withDefaults()
	clock := poll.OrSystem(e.Clock)
	log := e.logger().With("target", target)

	ctx, span := e.tracer().Start(ctx, "execute", trace.WithAttributes(
		attribute.String("pane.target", target),
		attribute.String("execute.command", command),
		attribute.Float64("execute.timeout_s", opts.Timeout.Seconds()),
	))
	defer span.End()

	x := &execution{target: target, markers: marker.Generate()}
	x.start = clock.Now()
	x.deadline = x.start.Add(opts.Timeout)

	if e.Locker != nil {
		release, err := e.lock(ctx, x, opts.Timeout)
		if errors.Is(err, errLockTimeout) {
			res := &model.ExecutionResult{ExitCode: model.ExitCodeTimeout, Elapsed: clock.Now().Sub(x.start)}
			span.SetStatus(codes.Error, "lock timeout")
			e.Metrics.RecordExecution(ctx, tmxotel.OutcomeTimeout, res.Elapsed.Seconds())
			e.emit(log, events.StateError, target, fmt.Sprintf("pane still locked after %s", opts.Timeout))
			log.Debug("pane lock not acquired before deadline", "timeout", opts.Timeout)
			return res, nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lock")
			return nil, err
		}
		defer func() {
			if err := release(); err != nil {
				log.Warn("release pane lock", "error", err)
			}
		}()
	}

	log.Debug("execute", "command", command, "marker", x.markers.End)

	err := e.Pane.SendKeys(ctx, mux.SendKeysOptions{
		Target:  target,
		Text:    marker.Wrap(command, x.markers),
		Enter:   true,
		Delay:   opts.SendDelay,
		Literal: true,
	})
	if err != nil {
		return nil, e.fail(ctx, span, target, fmt.Errorf("send command: %w", err))
	}
	e.emit(log, events.StateRunning, target, command)

	res, err := e.run(ctx, x, opts.Interval)
	if err != nil {
		return nil, e.fail(ctx, span, target, err)
	}

	span.SetAttributes(
		attribute.Int("execute.exit_code", res.ExitCode),
		attribute.Int("execute.ticks", x.ticks),
		attribute.String("execute.state", x.state.String()),
	)
	if res.TimedOut() {
		span.SetStatus(codes.Error, "timeout")
		e.Metrics.RecordExecution(ctx, tmxotel.OutcomeTimeout, res.Elapsed.Seconds())
		e.emit(log, events.StateError, target, fmt.Sprintf("timed out after %s", opts.Timeout))
	} else {
		e.Metrics.RecordExecution(ctx, tmxotel.OutcomeCompleted, res.Elapsed.Seconds())
		e.emit(log, events.StateCompleted, target, fmt.Sprintf("exit %d", res.ExitCode))
	}
	log.Debug("execute done", "state", x.state, "exit_code", res.ExitCode, "elapsed", res.Elapsed, "ticks", x.ticks)
	return res, nil
}

// run drives the state machine until it leaves the polling state.
func (e *Engine) run(ctx context.Context, x *execution, interval time.Duration) (*model.ExecutionResult, error) {
	clock := poll.OrSystem(e.Clock)
	for {
		switch x.state {
		case statePolling:
			now := clock.Now()
			if !now.Before(x.deadline) {
				x.state = stateTimedOut
				continue
			}
			found, err := e.tick(ctx, x)
			if err != nil {
				return nil, err
			}
			if found {
				x.state = stateSucceeded
				continue
			}
			wait := interval
			if remaining := x.deadline.Sub(clock.Now()); remaining < wait {
				wait = remaining
			}
			if err := clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}

		case stateSucceeded:
			return &model.ExecutionResult{
				Output:   x.parsed.Output,
				ExitCode: x.parsed.ExitCode,
				Elapsed:  clock.Now().Sub(x.start),
			}, nil

		case stateTimedOut:
			found, err := e.finalAttempt(ctx, x)
			if err != nil {
				return nil, err
			}
			if found {
				x.state = stateSucceeded
				continue
			}
			return &model.ExecutionResult{
				ExitCode: model.ExitCodeTimeout,
				Elapsed:  clock.Now().Sub(x.start),
			}, nil

		default:
			return nil, fmt.Errorf("execution in unknown state %d", x.state)
		}
	}
}

// tick walks the depth ladder once. It stops as soon as the numeric end marker
// is missing, since a deeper capture cannot show output the command has not
// printed yet, and goes deeper only when the end is visible but the start has
// scrolled out of the capture window.
func (e *Engine) tick(ctx context.Context, x *execution) (bool, error) {
	x.ticks++
	ctx, span := e.tracer().Start(ctx, "execute.tick", trace.WithAttributes(
		attribute.Int("tick", x.ticks),
	))
	defer span.End()

	for _, lines := range e.levels() {
		captured, err := e.capture(ctx, x.target, lines)
		if err != nil {
			span.RecordError(err)
			return false, err
		}
		if !marker.HasEnd(captured, x.markers) {
			span.SetAttributes(attribute.String("tick.result", "running"))
			return false, nil
		}
		if p, ok := marker.Parse(captured, x.markers); ok {
			x.parsed = p
			span.SetAttributes(
				attribute.String("tick.result", "done"),
				attribute.String("tick.depth", mux.DepthLabel(lines)),
			)
			return true, nil
		}
		e.logger().Debug("end marker visible without start, escalating", "target", x.target, "depth", mux.DepthLabel(lines))
	}
	span.SetAttributes(attribute.String("tick.result", "start_not_found"))
	return false, nil
}

var errLockTimeout = errors.New("pane lock wait reached the deadline")

// lock takes the pane lock within the execution's deadline. The wait counts
// against the timeout, so a busy pane ends in errLockTimeout rather than
// blocking past it.
func (e *Engine) lock(ctx context.Context, x *execution, timeout time.Duration) (func() error, error) {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release, err := e.Locker.Lock(lockCtx, x.target)
	if err == nil {
		return release, nil
	}
	if ctx.Err() == nil && errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
		return nil, errLockTimeout
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, err
}

// finalAttempt captures once more at the deepest level after the deadline,
// catching output that arrived during the last sleep.
func (e *Engine) finalAttempt(ctx context.Context, x *execution) (bool, error) {
	levels := e.levels()
	captured, err := e.capture(ctx, x.target, levels[len(levels)-1])
	if err != nil {
		return false, err
	}
	p, ok := marker.Parse(captured, x.markers)
	if !ok {
		return false, nil
	}
	x.parsed = p
	return true, nil
}

func (e *Engine) capture(ctx context.Context, target string, lines int) (string, error) {
	e.Metrics.RecordCapture(ctx, mux.DepthLabel(lines))
	out, err := e.Pane.CapturePane(ctx, target, mux.CaptureOptions{Lines: lines})
	if err != nil {
		return "", fmt.Errorf("capture pane: %w", err)
	}
	return out, nil
}

func (e *Engine) fail(ctx context.Context, span trace.Span, target string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.Metrics.RecordExecution(ctx, tmxotel.OutcomeError, 0)
	e.emit(e.logger().With("target", target), events.StateError, target, err.Error())
	return err
}

// emit publishes a lifecycle event. Delivery is best effort.
func (e *Engine) emit(log *slog.Logger, state, target, message string) {
	if err := e.Events.Emit(state, target, message); err != nil {
		log.Warn("emit event", "state", state, "error", err)
	}
}

func (e *Engine) levels() []int {
	if len(e.Levels) == 0 {
		return DefaultLevels
	}
	return e.Levels
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return e.Tracer
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
