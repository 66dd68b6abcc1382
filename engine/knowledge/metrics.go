package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/compozy/molrag/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce           sync.Once
	metricsMu             sync.Mutex
	metricsInitErr        error
	queryLatencyHist      metric.Float64Histogram
	retrievalEmptyCounter metric.Int64Counter
	legHitsCounter        metric.Int64Counter
)

// RecordQueryLatency records the duration of one retrieve call.
func RecordQueryLatency(ctx context.Context, provider string, d time.Duration) {
	if err := ensureMetrics(); err != nil || queryLatencyHist == nil {
		return
	}
	queryLatencyHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordRetrievalEmpty counts retrievals that produced no passages.
func RecordRetrievalEmpty(ctx context.Context, provider string, reason string) {
	if err := ensureMetrics(); err != nil || retrievalEmptyCounter == nil {
		return
	}
	retrievalEmptyCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("reason", reason),
	))
}

// RecordLegHits counts candidates contributed by a search leg (lexical or vector).
func RecordLegHits(ctx context.Context, provider string, leg string, hits int) {
	if hits <= 0 {
		return
	}
	if err := ensureMetrics(); err != nil || legHitsCounter == nil {
		return
	}
	legHitsCounter.Add(ctx, int64(hits), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("leg", leg),
	))
}

func ResetMetricsForTesting() {
	metricsMu.Lock()
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	queryLatencyHist = nil
	retrievalEmptyCounter = nil
	legHitsCounter = nil
	metricsMu.Unlock()
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("molrag.knowledge")
		metricsInitErr = initMetrics(meter)
	})
	return metricsInitErr
}

func initMetrics(meter metric.Meter) error {
	var err error
	queryLatencyHist, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("knowledge", "query_latency_seconds"),
		metric.WithDescription("Latency of hybrid index retrieval queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.QueryLatencyBuckets...),
	)
	if err != nil {
		return err
	}
	retrievalEmptyCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "retrieval_empty_total"),
		metric.WithDescription("Number of retrievals that returned no passages"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}
	legHitsCounter, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("knowledge", "leg_hits_total"),
		metric.WithDescription("Candidates returned by each hybrid search leg"),
		metric.WithUnit("1"),
	)
	return err
}
