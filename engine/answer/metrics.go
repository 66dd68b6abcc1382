package answer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/compozy/molrag/engine/infra/monitoring/metrics"
	llmadapter "github.com/compozy/molrag/engine/llm/adapter"
)

var (
	metricsOnce            sync.Once
	metricsMu              sync.Mutex
	metricsInitErr         error
	routeCounter           metric.Int64Counter
	citationCounter        metric.Int64Counter
	historyDroppedCounter  metric.Int64Counter
	generationLatencyHist  metric.Float64Histogram
	generationTokenCounter metric.Int64Counter
)

func recordRoute(ctx context.Context, outcome Outcome) {
	if err := ensureMetrics(); err != nil || routeCounter == nil {
		return
	}
	routeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func recordCitation(ctx context.Context, trusted bool) {
	if err := ensureMetrics(); err != nil || citationCounter == nil {
		return
	}
	citationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("trusted", strconv.FormatBool(trusted))))
}

func recordHistoryDropped(ctx context.Context, reason string) {
	if err := ensureMetrics(); err != nil || historyDroppedCounter == nil {
		return
	}
	historyDroppedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func recordGeneration(ctx context.Context, stage, model string, d time.Duration, usage *llmadapter.Usage, failed bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("model", model),
		attribute.Bool("error", failed),
	)
	if generationLatencyHist != nil {
		generationLatencyHist.Record(ctx, d.Seconds(), attrs)
	}
	if usage == nil || generationTokenCounter == nil {
		return
	}
	generationTokenCounter.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("model", model),
		attribute.String("kind", "prompt"),
	))
	generationTokenCounter.Add(ctx, int64(usage.CompletionTokens), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("model", model),
		attribute.String("kind", "completion"),
	))
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	routeCounter = nil
	citationCounter = nil
	historyDroppedCounter = nil
	generationLatencyHist = nil
	generationTokenCounter = nil
	metricsMu.Unlock()
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("molrag.answer")
		metricsInitErr = initMetrics(meter)
	})
	return metricsInitErr
}

func initMetrics(meter metric.Meter) error {
	var err error
	routeCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("answer", "route_total"),
		metric.WithDescription("Answers produced, by terminal outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	citationCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("answer", "citations_total"),
		metric.WithDescription("Web search citations, by trust decision"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	historyDroppedCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("answer", "history_dropped_total"),
		metric.WithDescription("Conversation history entries dropped during validation"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	generationLatencyHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("answer", "generation_latency_seconds"),
		metric.WithDescription("Latency of model calls, by stage"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.GenerationLatencyBuckets...),
	)
	if err != nil {
		return err
	}
	generationTokenCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("answer", "generation_tokens_total"),
		metric.WithDescription("Tokens reported by model calls"),
		metric.WithUnit("1"),
	)
	return err
}
