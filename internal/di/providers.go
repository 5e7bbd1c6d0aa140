package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/reposync/admin-backend/internal/app"
	"github.com/reposync/admin-backend/internal/config"
	"github.com/reposync/admin-backend/internal/database"
	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/health"
	"github.com/reposync/admin-backend/internal/http/handler"
	"github.com/reposync/admin-backend/internal/http/middleware"
	"github.com/reposync/admin-backend/internal/http/router"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/scim"
	"github.com/reposync/admin-backend/internal/security"
	"github.com/reposync/admin-backend/internal/service"
)

const (
	idempotencyTTL             = 24 * time.Hour
	idempotencyCleanupInterval = 5 * time.Minute
	idempotencyCleanupBatch    = 500
	readinessProbeTimeout      = 2 * time.Second
	readinessGracePeriod       = 3 * time.Second
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var DirectorySet = wire.NewSet(
	provideDirectoryConfig,
	directory.NewCodec,
	provideSCIMClient,
	wire.Bind(new(scim.Client), new(*scim.HTTPClient)),
)

var RepositorySet = wire.NewSet(
	repository.NewImportJobRepository,
	repository.NewSyncAuditRepository,
)

var SecuritySet = wire.NewSet(provideJWTManager)

var ServiceSet = wire.NewSet(
	service.NewPrincipalResolver,
	provideSearchCache,
	provideDirectoryAdminService,
	wire.Bind(new(service.DirectoryAdminService), new(*service.DirectoryAdminServiceImpl)),
	provideImportArchive,
	provideImportService,
	wire.Bind(new(service.ImportService), new(*service.ImportServiceImpl)),
	service.NewReconcileService,
	provideReconcileScheduler,
	provideRetentionScheduler,
	provideIdempotencyStore,
)

var HTTPSet = wire.NewSet(
	handler.NewDirectoryHandler,
	handler.NewImportHandler,
	handler.NewPrincipalHandler,
	handler.NewAuditHandler,
	provideRateLimiter,
	provideIdempotencyFactory,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func provideDirectoryConfig(cfg *config.Config) (*directory.Config, error) {
	return cfg.DirectoryConfig()
}

func provideSCIMClient(cfg *config.Config) (*scim.HTTPClient, error) {
	return scim.NewHTTPClient(cfg.DirectoryBaseURL, cfg.DirectoryAPIToken, cfg.DirectoryTimeout)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTSigningSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTGroupsClaim)
}

func provideSearchCache(redisClient redis.UniversalClient) service.SearchCacheStore {
	if redisClient != nil {
		return service.NewRedisSearchCacheStore(redisClient, "search")
	}
	return service.NewInMemorySearchCacheStore()
}

func provideDirectoryAdminService(
	client scim.Client,
	dirCfg *directory.Config,
	codec *directory.Codec,
	cache service.SearchCacheStore,
	audits repository.SyncAuditRepository,
	cfg *config.Config,
) *service.DirectoryAdminServiceImpl {
	return service.NewDirectoryAdminService(client, dirCfg, codec, cache, cfg.SearchCacheTTL, audits)
}

func provideImportArchive(cfg *config.Config, logger *slog.Logger) (service.ImportArchive, error) {
	if cfg.MinioEndpoint == "" {
		logger.Info("import archive disabled, uploaded files are not retained")
		return &service.NoopImportArchive{}, nil
	}
	return service.NewMinIOImportArchive(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
}

func provideImportService(
	jobs repository.ImportJobRepository,
	admin service.DirectoryAdminService,
	archive service.ImportArchive,
	cfg *config.Config,
) *service.ImportServiceImpl {
	return service.NewImportService(jobs, admin, archive, cfg.ImportMaxRows)
}

func provideReconcileScheduler(cfg *config.Config, svc *service.ReconcileServiceImpl, logger *slog.Logger) (*service.ReconcileScheduler, error) {
	return service.NewReconcileScheduler(cfg.ReconcileCron, svc, logger)
}

func provideRetentionScheduler(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*database.RetentionScheduler, error) {
	audit := time.Duration(cfg.AuditRetentionDays) * 24 * time.Hour
	imports := time.Duration(cfg.ImportRetentionDays) * 24 * time.Hour
	return database.NewRetentionScheduler(cfg.RetentionCron, db, audit, imports, logger)
}

func provideIdempotencyStore(db *gorm.DB) *service.DBIdempotencyStore {
	return service.NewDBIdempotencyStore(db)
}

func provideIdempotencyFactory(store *service.DBIdempotencyStore) router.IdempotencyMiddlewareFactory {
	mw := middleware.NewIdempotencyMiddleware(store, idempotencyTTL)
	return mw.Middleware
}

func provideRateLimiter(cfg *config.Config, redisClient redis.UniversalClient, jwt *security.JWTManager) router.RateLimiterFunc {
	if redisClient != nil {
		limiter := middleware.NewRedisFixedWindowLimiter(redisClient, "rl:api")
		return middleware.NewDistributedRateLimiterWithKey(
			limiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
			middleware.SubjectOrIPKeyFunc(jwt),
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute).Middleware()
}

func provideRouterDependencies(
	directoryHandler *handler.DirectoryHandler,
	importHandler *handler.ImportHandler,
	principalHandler *handler.PrincipalHandler,
	auditHandler *handler.AuditHandler,
	jwt *security.JWTManager,
	principals *service.PrincipalResolver,
	rateLimiter router.RateLimiterFunc,
	idempotency router.IdempotencyMiddlewareFactory,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		DirectoryHandler:  directoryHandler,
		ImportHandler:     importHandler,
		PrincipalHandler:  principalHandler,
		AuditHandler:      auditHandler,
		JWTManager:        jwt,
		PrincipalResolver: principals,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		RateLimiter:       rateLimiter,
		Idempotency:       idempotency,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(db *gorm.DB, redisClient redis.UniversalClient, client scim.Client) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 3)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if c := health.NewRedisChecker(redisClient); c != nil {
		checkers = append(checkers, c)
	}
	if c := health.NewDirectoryChecker(client); c != nil {
		checkers = append(checkers, c)
	}
	return health.NewProbeRunner(readinessProbeTimeout, readinessGracePeriod, checkers...)
}

// startIdempotencyCleanup runs the expired-record sweep until the returned
// stop function is called.
func startIdempotencyCleanup(store *service.DBIdempotencyStore, logger *slog.Logger) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		store.RunCleanupLoop(ctx, idempotencyCleanupInterval, idempotencyCleanupBatch, logger)
	}()
	return func() {
		cancel()
		<-done
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
	reconciler *service.ReconcileScheduler,
	retention *database.RetentionScheduler,
	idempotencyStore *service.DBIdempotencyStore,
) *app.App {
	stop := startIdempotencyCleanup(idempotencyStore, logger)
	return app.New(cfg, logger, server, runtime, db, redisClient, readiness, reconciler, retention, stop)
}
