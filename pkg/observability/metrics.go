package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPhasesTotal   = "modtest.phase.runs.total"
	metricPhaseDuration = "modtest.phase.duration.seconds"
	metricErrorsTotal   = "modtest.phase.errors.total"
	metricInflight      = "modtest.phase.inflight"
	metricSessionsTotal = "modtest.sessions.total"
	metricModulesTested = "modtest.modules.tested"

	attrPhase   = "phase"
	attrStatus  = "status"
	attrVerdict = "verdict"
)

// Phase statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 10ms git calls up to hour-long server runs.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800, 3600}

// REDMetrics holds the rate, error, and duration instruments for session phases.
type REDMetrics struct {
	phasesTotal   metric.Int64Counter
	phaseDuration metric.Float64Histogram
	errorsTotal   metric.Int64Counter
	inflight      metric.Int64UpDownCounter
	sessionsTotal metric.Int64Counter
	modulesTested metric.Int64Histogram
}

// NewREDMetrics creates the instruments from mt.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	phasesTotal, err := mt.Int64Counter(metricPhasesTotal,
		metric.WithDescription("Session phases run"),
		metric.WithUnit("{phase}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhasesTotal, err)
	}

	phaseDuration, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Session phase duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	errorsTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Session phases that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflight,
		metric.WithDescription("Session phases in progress"),
		metric.WithUnit("{phase}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflight, err)
	}

	sessionsTotal, err := mt.Int64Counter(metricSessionsTotal,
		metric.WithDescription("Completed sessions by verdict"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricSessionsTotal, err)
	}

	modulesTested, err := mt.Int64Histogram(metricModulesTested,
		metric.WithDescription("Modules selected per session"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricModulesTested, err)
	}

	return &REDMetrics{
		phasesTotal:   phasesTotal,
		phaseDuration: phaseDuration,
		errorsTotal:   errorsTotal,
		inflight:      inflight,
		sessionsTotal: sessionsTotal,
		modulesTested: modulesTested,
	}, nil
}

// RecordPhase records a finished phase with its status and duration.
func (rm *REDMetrics) RecordPhase(ctx context.Context, phase, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrPhase, phase),
		attribute.String(attrStatus, status),
	)

	rm.phasesTotal.Add(ctx, 1, attrs)
	rm.phaseDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrPhase, phase)))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, phase string) func() {
	attrs := metric.WithAttributes(attribute.String(attrPhase, phase))
	rm.inflight.Add(ctx, 1, attrs)

	return func() {
		rm.inflight.Add(ctx, -1, attrs)
	}
}

// RecordSession records a session verdict and how many modules it selected.
func (rm *REDMetrics) RecordSession(ctx context.Context, verdict string, modules int) {
	attrs := metric.WithAttributes(attribute.String(attrVerdict, verdict))

	rm.sessionsTotal.Add(ctx, 1, attrs)
	rm.modulesTested.Record(ctx, int64(modules), attrs)
}
