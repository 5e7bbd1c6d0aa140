package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reposync/admin-backend/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	searchReqDuration            metric.Float64Histogram
	searchPageSize               metric.Float64Histogram
	searchCacheEvents            metric.Int64Counter
	directoryCallDuration        metric.Float64Histogram
	directoryCallCounter         metric.Int64Counter
	patchOpsCount                metric.Float64Histogram
	scopeResolutionCounter       metric.Int64Counter
	accessTokenValidationCounter metric.Int64Counter
	rateLimitDecisionCounter     metric.Int64Counter
	rateLimitRetryAfter          metric.Float64Histogram
	importJobCounter             metric.Int64Counter
	importRowsProcessed          metric.Float64Histogram
	reconcileRunCounter          metric.Int64Counter
	reconcileDriftCount          metric.Float64Histogram
	repositoryOpsCounter         metric.Int64Counter
	idempotencyCounter           metric.Int64Counter
	idempotencyCleanupCounter    metric.Int64Counter
	idempotencyCleanupDeleted    metric.Float64Histogram
	healthCheckResultCounter     metric.Int64Counter
	healthCheckDuration          metric.Float64Histogram
	middlewareValidationCounter  metric.Int64Counter
	csrfValidationCounter        metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
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
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "directory.search.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("reposync-admin-backend")
	searchReqDuration, err := meter.Float64Histogram(
		"directory.search.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of directory search requests in seconds"),
	)
	if err != nil {
		return nil, err
	}
	searchPageSize, err := meter.Float64Histogram(
		"directory.search.page_size",
		metric.WithDescription("Requested page size for directory search endpoints"),
	)
	if err != nil {
		return nil, err
	}
	searchCacheEvents, err := meter.Int64Counter("directory.search.cache.events")
	if err != nil {
		return nil, err
	}
	directoryCallDuration, err := meter.Float64Histogram(
		"directory.client.call.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of upstream directory calls in seconds"),
	)
	if err != nil {
		return nil, err
	}
	directoryCallCounter, err := meter.Int64Counter("directory.client.calls")
	if err != nil {
		return nil, err
	}
	patchOpsCount, err := meter.Float64Histogram(
		"directory.patch.ops",
		metric.WithDescription("Number of patch operations emitted per update"),
	)
	if err != nil {
		return nil, err
	}
	scopeResolutionCounter, err := meter.Int64Counter("directory.scope.resolutions")
	if err != nil {
		return nil, err
	}
	accessTokenValidationCounter, err := meter.Int64Counter("auth.access_token.validation.events")
	if err != nil {
		return nil, err
	}
	rateLimitDecisionCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	rateLimitRetryAfter, err := meter.Float64Histogram(
		"http.rate_limit.retry_after",
		metric.WithUnit("s"),
		metric.WithDescription("Retry-after duration in seconds for throttled requests"),
	)
	if err != nil {
		return nil, err
	}
	importJobCounter, err := meter.Int64Counter("import.job.events")
	if err != nil {
		return nil, err
	}
	importRowsProcessed, err := meter.Float64Histogram(
		"import.job.rows",
		metric.WithDescription("Number of rows processed per import job"),
	)
	if err != nil {
		return nil, err
	}
	reconcileRunCounter, err := meter.Int64Counter("reconcile.runs")
	if err != nil {
		return nil, err
	}
	reconcileDriftCount, err := meter.Float64Histogram(
		"reconcile.drift",
		metric.WithDescription("Number of drifted groups detected per reconcile run"),
	)
	if err != nil {
		return nil, err
	}
	repositoryOpsCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	idempotencyCounter, err := meter.Int64Counter("http.idempotency.events")
	if err != nil {
		return nil, err
	}
	idempotencyCleanupCounter, err := meter.Int64Counter("idempotency.cleanup.runs")
	if err != nil {
		return nil, err
	}
	idempotencyCleanupDeleted, err := meter.Float64Histogram(
		"idempotency.cleanup.deleted_rows",
		metric.WithDescription("Number of expired idempotency records deleted per cleanup run"),
	)
	if err != nil {
		return nil, err
	}
	healthCheckResultCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	healthCheckDuration, err := meter.Float64Histogram(
		"health.check.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of health dependency checks in seconds"),
	)
	if err != nil {
		return nil, err
	}
	middlewareValidationCounter, err := meter.Int64Counter("http.middleware.validation.events")
	if err != nil {
		return nil, err
	}
	csrfValidationCounter, err := meter.Int64Counter("http.csrf.validation.events")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		searchReqDuration:            searchReqDuration,
		searchPageSize:               searchPageSize,
		searchCacheEvents:            searchCacheEvents,
		directoryCallDuration:        directoryCallDuration,
		directoryCallCounter:         directoryCallCounter,
		patchOpsCount:                patchOpsCount,
		scopeResolutionCounter:       scopeResolutionCounter,
		accessTokenValidationCounter: accessTokenValidationCounter,
		rateLimitDecisionCounter:     rateLimitDecisionCounter,
		rateLimitRetryAfter:          rateLimitRetryAfter,
		importJobCounter:             importJobCounter,
		importRowsProcessed:          importRowsProcessed,
		reconcileRunCounter:          reconcileRunCounter,
		reconcileDriftCount:          reconcileDriftCount,
		repositoryOpsCounter:         repositoryOpsCounter,
		idempotencyCounter:           idempotencyCounter,
		idempotencyCleanupCounter:    idempotencyCleanupCounter,
		idempotencyCleanupDeleted:    idempotencyCleanupDeleted,
		healthCheckResultCounter:     healthCheckResultCounter,
		healthCheckDuration:          healthCheckDuration,
		middlewareValidationCounter:  middlewareValidationCounter,
		csrfValidationCounter:        csrfValidationCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordSearchRequestDuration(ctx context.Context, kind, status string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.searchReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func RecordSearchPageSize(ctx context.Context, kind string, pageSize int) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.searchPageSize.Record(ctx, float64(pageSize), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

func RecordSearchCacheEvent(ctx context.Context, kind, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.searchCacheEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func RecordDirectoryCall(ctx context.Context, operation, status string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.directoryCallCounter.Add(ctx, 1, attrs)
	m.directoryCallDuration.Record(ctx, duration.Seconds(), attrs)
}

func RecordPatchOpsCount(ctx context.Context, kind string, count int) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.patchOpsCount.Record(ctx, float64(count), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

func RecordScopeResolution(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.scopeResolutionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.accessTokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordImportJobEvent(ctx context.Context, status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.importJobCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func RecordImportRowsProcessed(ctx context.Context, status string, rows int) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.importRowsProcessed.Record(ctx, float64(rows), metric.WithAttributes(
		attribute.String("status", status),
	))
}

func RecordReconcileRun(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.reconcileRunCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordReconcileDrift(ctx context.Context, drifted int) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.reconcileDriftCount.Record(ctx, float64(drifted))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyEvent(ctx context.Context, scope, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.idempotencyCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyCleanupRun(ctx context.Context, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.idempotencyCleanupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordIdempotencyCleanupDeletedRows(ctx context.Context, deleted int64) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.idempotencyCleanupDeleted.Record(ctx, float64(deleted))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("check", check),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middlewareName, outcome string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middlewareName),
		attribute.String("outcome", outcome),
	))
}

func RecordCSRFValidation(ctx context.Context, outcome, pathGroup string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.csrfValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("path_group", pathGroup),
	))
}
