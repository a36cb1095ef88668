package core

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Metric names, also the keys of a run summary.
const (
	MetricLines             = "groktime_lines_total"
	MetricLinesMatched      = "groktime_lines_matched_total"
	MetricLinesFailed       = "groktime_lines_failed_total"
	MetricSynthesisAttempts = "groktime_synthesis_attempts_total"
	MetricRulesLearned      = "groktime_rules_learned_total"
)

// Metrics holds the run counters.
type Metrics struct {
	lines    metric.Int64Counter
	matched  metric.Int64Counter
	failed   metric.Int64Counter
	attempts metric.Int64Counter
	learned  metric.Int64Counter
}

// NewMetrics creates the counters on mp. A nil provider yields no-op counters.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("groktime")

	m := &Metrics{}
	var err error
	if m.lines, err = meter.Int64Counter(MetricLines, metric.WithDescription("Log lines read")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricLines, err)
	}
	if m.matched, err = meter.Int64Counter(MetricLinesMatched, metric.WithDescription("Lines turned into records")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricLinesMatched, err)
	}
	if m.failed, err = meter.Int64Counter(MetricLinesFailed, metric.WithDescription("Lines skipped")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricLinesFailed, err)
	}
	if m.attempts, err = meter.Int64Counter(MetricSynthesisAttempts, metric.WithDescription("Oracle synthesis attempts")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricSynthesisAttempts, err)
	}
	if m.learned, err = meter.Int64Counter(MetricRulesLearned, metric.WithDescription("Rules appended to the store")); err != nil {
		return nil, fmt.Errorf("creating %s: %w", MetricRulesLearned, err)
	}
	return m, nil
}

// NopMetrics returns counters that record nothing.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(nil)
	return m
}

func (m *Metrics) LineRead(ctx context.Context) { m.lines.Add(ctx, 1) }

// LineMatched counts a record; via is "store" or "synthesis".
func (m *Metrics) LineMatched(ctx context.Context, via string) {
	m.matched.Add(ctx, 1, metric.WithAttributes(attribute.String("via", via)))
}

func (m *Metrics) LineFailed(ctx context.Context, reason string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) SynthesisAttempt(ctx context.Context, outcome string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RuleLearned(ctx context.Context) { m.learned.Add(ctx, 1) }

// CollectSummary reads every int64 sum from reader and totals it per metric
// name, ignoring attributes.
func CollectSummary(ctx context.Context, reader sdkmetric.Reader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			sum, ok := mt.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			out[mt.Name] = total
		}
	}
	return out, nil
}
