package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobMetrics provides metrics collection for builds and sessions
type JobMetrics struct {
	jobsCreatedCounter   metric.Int64Counter
	jobsCompletedCounter metric.Int64Counter
	jobsFailedCounter    metric.Int64Counter
	jobDurationHistogram metric.Float64Histogram
	jobsActiveGauge      metric.Int64UpDownCounter
	slicingFallbacks     metric.Int64Counter
	sessionsCreated      metric.Int64Counter
	evaluationDuration   metric.Float64Histogram
	evaluationTimeouts   metric.Int64Counter
}

// NewJobMetrics creates a collector on the global meter provider
func NewJobMetrics() (*JobMetrics, error) {
	return NewJobMetricsWithMeter(otel.Meter("maker-metrics"))
}

// NewJobMetricsWithMeter creates a collector on meter
func NewJobMetricsWithMeter(meter metric.Meter) (*JobMetrics, error) {
	jm := &JobMetrics{}
	var err error

	if jm.jobsCreatedCounter, err = meter.Int64Counter(
		"maker.jobs.created",
		metric.WithDescription("Total number of build jobs created"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, err
	}
	if jm.jobsCompletedCounter, err = meter.Int64Counter(
		"maker.jobs.completed",
		metric.WithDescription("Total number of build jobs completed"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, err
	}
	if jm.jobsFailedCounter, err = meter.Int64Counter(
		"maker.jobs.failed",
		metric.WithDescription("Total number of build jobs that failed"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, err
	}
	if jm.jobDurationHistogram, err = meter.Float64Histogram(
		"maker.job.duration",
		metric.WithDescription("Duration of build execution in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if jm.jobsActiveGauge, err = meter.Int64UpDownCounter(
		"maker.jobs.active",
		metric.WithDescription("Number of builds in flight"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, err
	}
	if jm.slicingFallbacks, err = meter.Int64Counter(
		"maker.slicing.fallbacks",
		metric.WithDescription("Builds that shipped a placeholder package"),
		metric.WithUnit("{job}"),
	); err != nil {
		return nil, err
	}
	if jm.sessionsCreated, err = meter.Int64Counter(
		"maker.sessions.created",
		metric.WithDescription("Total number of sessions created"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if jm.evaluationDuration, err = meter.Float64Histogram(
		"maker.evaluation.duration",
		metric.WithDescription("Duration of specialist evaluation in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if jm.evaluationTimeouts, err = meter.Int64Counter(
		"maker.evaluation.timeouts",
		metric.WithDescription("Specialist evaluations abandoned on timeout"),
		metric.WithUnit("{evaluation}"),
	); err != nil {
		return nil, err
	}
	return jm, nil
}

// RecordJobCreated records a new build
func (jm *JobMetrics) RecordJobCreated(ctx context.Context, profile string) {
	attrs := metric.WithAttributes(attribute.String("machine_profile", profile))
	jm.jobsCreatedCounter.Add(ctx, 1, attrs)
	jm.jobsActiveGauge.Add(ctx, 1, attrs)
}

// RecordJobCompleted records a successful build
func (jm *JobMetrics) RecordJobCompleted(ctx context.Context, profile string, duration time.Duration) {
	jm.jobsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("machine_profile", profile),
			attribute.String("status", "completed"),
		),
	)
	jm.jobDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("machine_profile", profile),
			attribute.String("status", "completed"),
		),
	)
	jm.jobsActiveGauge.Add(ctx, -1, metric.WithAttributes(attribute.String("machine_profile", profile)))
}

// RecordJobFailed records a failed build
func (jm *JobMetrics) RecordJobFailed(ctx context.Context, profile, errorType string, duration time.Duration) {
	jm.jobsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("machine_profile", profile),
			attribute.String("status", "failed"),
			attribute.String("error.type", errorType),
		),
	)
	jm.jobDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("machine_profile", profile),
			attribute.String("status", "failed"),
		),
	)
	jm.jobsActiveGauge.Add(ctx, -1, metric.WithAttributes(attribute.String("machine_profile", profile)))
}

// RecordSlicingFallback records a build that shipped a placeholder package
func (jm *JobMetrics) RecordSlicingFallback(ctx context.Context, profile string) {
	jm.slicingFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("machine_profile", profile)))
}

// RecordSessionCreated records a new session by its initial status
func (jm *JobMetrics) RecordSessionCreated(ctx context.Context, status string) {
	jm.sessionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordEvaluation records one specialist evaluation pass
func (jm *JobMetrics) RecordEvaluation(ctx context.Context, duration time.Duration, timedOut bool) {
	jm.evaluationDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("timed_out", timedOut)),
	)
	if timedOut {
		jm.evaluationTimeouts.Add(ctx, 1)
	}
}
