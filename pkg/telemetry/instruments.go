package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func layerAttr(layer string) attribute.KeyValue {
	return attribute.String("layer", layer)
}

// OrchestrationMetrics are the counters and histograms the orchestrator
// records per remember/rememberStream call. Every method is a no-op on a
// nil *OrchestrationMetrics, so telemetry remains entirely optional;
// NewOrchestrationMetrics itself needs a non-nil Meter.
type OrchestrationMetrics struct {
	layerLatency   metric.Float64Histogram
	layerErrors    metric.Int64Counter
	factsCreated   metric.Int64Counter
	factsRevised   metric.Int64Counter
	recallQueries  metric.Int64Counter
	recallDuration metric.Float64Histogram
}

// NewOrchestrationMetrics registers the instruments against meter.
func NewOrchestrationMetrics(meter metric.Meter) (*OrchestrationMetrics, error) {
	m := &OrchestrationMetrics{}
	var err error

	if m.layerLatency, err = meter.Float64Histogram("memcore.layer.latency_ms",
		metric.WithDescription("Per-layer latency within one orchestration call")); err != nil {
		return nil, err
	}
	if m.layerErrors, err = meter.Int64Counter("memcore.layer.errors",
		metric.WithDescription("Layer failures, tagged by layer name")); err != nil {
		return nil, err
	}
	if m.factsCreated, err = meter.Int64Counter("memcore.facts.created",
		metric.WithDescription("Belief-revision CREATE decisions")); err != nil {
		return nil, err
	}
	if m.factsRevised, err = meter.Int64Counter("memcore.facts.revised",
		metric.WithDescription("Belief-revision UPDATE/SUPERSEDE decisions")); err != nil {
		return nil, err
	}
	if m.recallQueries, err = meter.Int64Counter("memcore.recall.queries",
		metric.WithDescription("Recall planner invocations")); err != nil {
		return nil, err
	}
	if m.recallDuration, err = meter.Float64Histogram("memcore.recall.duration_ms",
		metric.WithDescription("Recall planner end-to-end latency")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *OrchestrationMetrics) RecordLayer(ctx context.Context, layer string, durationMs float64, failed bool) {
	if m == nil {
		return
	}
	attr := metric.WithAttributes(layerAttr(layer))
	m.layerLatency.Record(ctx, durationMs, attr)
	if failed {
		m.layerErrors.Add(ctx, 1, attr)
	}
}

func (m *OrchestrationMetrics) RecordFactDecision(ctx context.Context, created bool) {
	if m == nil {
		return
	}
	if created {
		m.factsCreated.Add(ctx, 1)
	} else {
		m.factsRevised.Add(ctx, 1)
	}
}

func (m *OrchestrationMetrics) RecordRecall(ctx context.Context, durationMs float64) {
	if m == nil {
		return
	}
	m.recallQueries.Add(ctx, 1)
	m.recallDuration.Record(ctx, durationMs)
}
