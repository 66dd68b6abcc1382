package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/compozy/molrag/engine/infra/monitoring/metrics"
	"github.com/compozy/molrag/pkg/logger"
	"github.com/compozy/molrag/pkg/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	systemMu           sync.Mutex
	buildInfo          metric.Float64Gauge
	uptimeRegistration metric.Registration
)

// InitSystemMetrics registers build info and uptime instruments on meter.
func InitSystemMetrics(ctx context.Context, meter metric.Meter) {
	systemMu.Lock()
	defer systemMu.Unlock()
	log := logger.FromContext(ctx)
	if uptimeRegistration != nil {
		if err := uptimeRegistration.Unregister(); err != nil {
			log.Warn("Failed to unregister previous uptime callback", "error", err)
		}
		uptimeRegistration = nil
	}
	var err error
	buildInfo, err = meter.Float64Gauge(
		metrics.MetricName("build_info"),
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		log.Error("Failed to create build info gauge", "error", err)
		buildInfo = nil
	}
	uptime, err := meter.Float64ObservableGauge(
		metrics.MetricName("uptime_seconds"),
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.Error("Failed to create uptime gauge", "error", err)
	} else {
		started := time.Now()
		uptimeRegistration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveFloat64(uptime, time.Since(started).Seconds())
			return nil
		}, uptime)
		if err != nil {
			log.Error("Failed to register uptime callback", "error", err)
		}
	}
	if buildInfo == nil {
		return
	}
	info := version.Get()
	buildInfo.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", info.Version),
		attribute.String("commit_hash", info.CommitHash),
		attribute.String("go_version", info.GoVersion),
	))
}
