package otel

import (
	"context"
	"time"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var RendezvousDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

const (
	MetricRunCount           = "mpiterm.run.count"
	MetricRendezvousDuration = "mpiterm.rendezvous.duration"
	MetricWorkerCount        = "mpiterm.workers"
)

// RunMetrics is safe to use as a nil pointer; every method becomes a no-op.
type RunMetrics struct {
	runs       metric.Int64Counter
	rendezvous metric.Float64Histogram
	workers    metric.Int64Histogram
}

func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	if meter == nil {
		meter = otelapi.Meter(instrumentationName)
	}
	runs, err := meter.Int64Counter(MetricRunCount,
		metric.WithDescription("Orchestrated runs by outcome."))
	if err != nil {
		return nil, err
	}
	rendezvous, err := meter.Float64Histogram(MetricRendezvousDuration,
		metric.WithDescription("Time from launch until every attach point was present."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RendezvousDurationBuckets...))
	if err != nil {
		return nil, err
	}
	workers, err := meter.Int64Histogram(MetricWorkerCount,
		metric.WithDescription("Requested worker count per run."))
	if err != nil {
		return nil, err
	}
	return &RunMetrics{runs: runs, rendezvous: rendezvous, workers: workers}, nil
}

func (m *RunMetrics) RecordRun(ctx context.Context, outcome string, workers int) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.workers.Record(ctx, int64(workers))
}

func (m *RunMetrics) RecordRendezvous(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rendezvous.Record(ctx, elapsed.Seconds())
}
