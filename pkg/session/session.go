package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/modtest/pkg/execution"
	"github.com/Sumatoshi-tech/modtest/pkg/logstore"
	"github.com/Sumatoshi-tech/modtest/pkg/modules"
	"github.com/Sumatoshi-tech/modtest/pkg/observability"
	"github.com/Sumatoshi-tech/modtest/pkg/outcome"
)

// Phase names, used for spans, metrics, and Result.Phases.
const (
	PhaseResolve  = "resolve"
	PhaseExecute  = "execute"
	PhaseEvaluate = "evaluate"
)

// Sentinel errors.
var (
	ErrAlreadyRun = errors.New("session already run")
	ErrMissingDep = errors.New("session dependency missing")
)

// Resolver computes the effective module set.
type Resolver interface {
	Resolve(ctx context.Context, req modules.Request) (modules.Set, error)
}

// Deps are the collaborators of a session. Resolver, Executor, and Store are
// required; the rest default to real clock, no-op tracing, no metrics, the
// default policy, and slog.Default.
type Deps struct {
	Resolver  Resolver
	Executor  execution.Executor
	Store     logstore.Store
	Evaluator *outcome.Evaluator
	Clock     clock.Clock
	Tracer    trace.Tracer
	Metrics   *observability.REDMetrics
	Logger    *slog.Logger
}

// Request describes one invocation.
type Request struct {
	BaseRef  string
	Database string
	Include  []string
	Exclude  []string
	Tags     []string
}

// Result is the outcome of a session.
type Result struct {
	Started time.Time
	Phases  map[string]time.Duration
	Modules []string
	Verdict outcome.Verdict
	Elapsed time.Duration
	State   State
}

// Session runs a single invocation. It is one-shot.
type Session struct {
	deps  Deps
	state State
	mu    sync.Mutex
}

// New creates an idle session.
func New(deps Deps) *Session {
	if deps.Evaluator == nil {
		deps.Evaluator = outcome.NewEvaluator(outcome.DefaultPolicy())
	}

	if deps.Clock == nil {
		deps.Clock = clock.NewClock()
	}

	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Session{deps: deps, state: Idle}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) transition(ctx context.Context, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !CanTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}

	s.deps.Logger.DebugContext(ctx, "session state changed", "from", s.state.String(), "to", to.String())
	s.state = to

	return nil
}

// Run resolves the modules of req, runs their tests, and evaluates the
// session's log records. An empty module set ends in [Skipped] with no
// execution. A failed verdict ends in [Failed] and is not an error. Errors
// from resolution, execution, or the log query end in [Errored].
func (s *Session) Run(ctx context.Context, req Request) (Result, error) {
	if s.deps.Resolver == nil || s.deps.Executor == nil || s.deps.Store == nil {
		return Result{}, ErrMissingDep
	}

	startErr := s.transition(ctx, Resolving)
	if startErr != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAlreadyRun, startErr)
	}

	result := Result{
		Started: s.deps.Clock.Now(),
		Phases:  make(map[string]time.Duration, 3),
	}

	var selected modules.Set

	resolveErr := s.phase(ctx, &result, PhaseResolve, func(ctx context.Context, span trace.Span) error {
		var err error

		selected, err = s.deps.Resolver.Resolve(ctx, modules.Request{
			BaseRef: req.BaseRef,
			Include: req.Include,
			Exclude: req.Exclude,
		})

		span.SetAttributes(
			attribute.String("git.base_ref", req.BaseRef),
			attribute.Int("modules.count", selected.Len()),
		)

		return err
	})
	if resolveErr != nil {
		return s.abort(ctx, &result, fmt.Errorf("resolve modules: %w", resolveErr))
	}

	result.Modules = selected.Sorted()

	if len(result.Modules) == 0 {
		return s.finish(ctx, &result, Skipped)
	}

	transErr := s.transition(ctx, Executing)
	if transErr != nil {
		return result, transErr
	}

	plan := execution.Plan{Database: req.Database, Modules: result.Modules, Tags: req.Tags}

	executeErr := s.phase(ctx, &result, PhaseExecute, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.StringSlice("modules.selected", plan.Modules))

		return s.deps.Executor.Execute(ctx, plan)
	})
	if executeErr != nil {
		return s.abort(ctx, &result, fmt.Errorf("execute tests: %w", executeErr))
	}

	transErr = s.transition(ctx, Evaluating)
	if transErr != nil {
		return result, transErr
	}

	evaluateErr := s.phase(ctx, &result, PhaseEvaluate, func(ctx context.Context, span trace.Span) error {
		records, err := s.deps.Store.Records(ctx, req.Database)
		if err != nil {
			return err
		}

		result.Verdict = s.deps.Evaluator.Assess(records)

		span.SetAttributes(
			attribute.Int("evaluation.records", result.Verdict.Records),
			attribute.Int("evaluation.failures", len(result.Verdict.Failures)),
			attribute.Bool("evaluation.passed", result.Verdict.Passed),
		)

		return nil
	})
	if evaluateErr != nil {
		return s.abort(ctx, &result, fmt.Errorf("query log records: %w", evaluateErr))
	}

	if !result.Verdict.Passed {
		return s.finish(ctx, &result, Failed)
	}

	return s.finish(ctx, &result, Passed)
}

func (s *Session) finish(ctx context.Context, result *Result, to State) (Result, error) {
	transErr := s.transition(ctx, to)
	if transErr != nil {
		return *result, transErr
	}

	result.State = to
	result.Elapsed = s.deps.Clock.Since(result.Started)

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordSession(ctx, to.String(), len(result.Modules))
	}

	s.deps.Logger.InfoContext(ctx, "session finished",
		"state", to.String(),
		"modules", result.Modules,
		"records", result.Verdict.Records,
		"failures", len(result.Verdict.Failures))

	return *result, nil
}

func (s *Session) abort(ctx context.Context, result *Result, cause error) (Result, error) {
	transErr := s.transition(ctx, Errored)
	result.State = Errored
	result.Elapsed = s.deps.Clock.Since(result.Started)

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordSession(ctx, Errored.String(), len(result.Modules))
	}

	s.deps.Logger.ErrorContext(ctx, "session aborted", "error", cause)

	return *result, errors.Join(cause, transErr)
}

// phase runs fn inside a "session.<name>" span and records its duration.
func (s *Session) phase(
	ctx context.Context, result *Result, name string,
	fn func(ctx context.Context, span trace.Span) error,
) error {
	ctx, span := s.deps.Tracer.Start(ctx, "session."+name)
	defer span.End()

	if s.deps.Metrics != nil {
		done := s.deps.Metrics.TrackInflight(ctx, name)
		defer done()
	}

	start := s.deps.Clock.Now()
	err := fn(ctx, span)
	elapsed := s.deps.Clock.Since(start)

	result.Phases[name] = elapsed

	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordPhase(ctx, name, status, elapsed)
	}

	return err
}
