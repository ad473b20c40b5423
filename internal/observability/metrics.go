package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/podworks/pod-access-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type appMetrics struct {
	repositoryCounter   metric.Int64Counter
	jobCounter          metric.Int64Counter
	provisioningCounter metric.Int64Counter
	tokenCounter        metric.Int64Counter
	billingCounter      metric.Int64Counter
}

var (
	metricsMu sync.RWMutex
	metrics   *appMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("pod-access-service")
	repoCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	jobCounter, err := meter.Int64Counter("jobs.outcomes")
	if err != nil {
		return nil, err
	}
	provisioningCounter, err := meter.Int64Counter("provisioning.attempts")
	if err != nil {
		return nil, err
	}
	tokenCounter, err := meter.Int64Counter("token.verifications")
	if err != nil {
		return nil, err
	}
	billingCounter, err := meter.Int64Counter("billing.charges")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	metrics = &appMetrics{
		repositoryCounter:   repoCounter,
		jobCounter:          jobCounter,
		provisioningCounter: provisioningCounter,
		tokenCounter:        tokenCounter,
		billingCounter:      billingCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordJobOutcome(name, outcome string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.jobCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("job", name),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordProvisioningAttempt(outcome string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.provisioningCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordTokenVerification(scope, outcome string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.tokenCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordBillingCharge(outcome string) {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.billingCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
