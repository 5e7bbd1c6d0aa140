// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"github.com/reposync/admin-backend/internal/app"
	"github.com/reposync/admin-backend/internal/config"
	"github.com/reposync/admin-backend/internal/directory"
	"github.com/reposync/admin-backend/internal/http/handler"
	"github.com/reposync/admin-backend/internal/http/router"
	"github.com/reposync/admin-backend/internal/repository"
	"github.com/reposync/admin-backend/internal/service"
)

// Injectors from wire.go:

func InitializeApp() (*app.App, error) {
	configConfig, err := config.Load()
	if err != nil {
		return nil, err
	}
	runtime, err := provideObservabilityRuntime(configConfig)
	if err != nil {
		return nil, err
	}
	logger := provideAppLogger(configConfig, runtime)
	httpClient, err := provideSCIMClient(configConfig)
	if err != nil {
		return nil, err
	}
	directoryConfig, err := provideDirectoryConfig(configConfig)
	if err != nil {
		return nil, err
	}
	codec := directory.NewCodec(directoryConfig)
	universalClient, err := provideRedisClient(configConfig)
	if err != nil {
		return nil, err
	}
	searchCacheStore := provideSearchCache(universalClient)
	db, err := provideRuntimeDB(configConfig)
	if err != nil {
		return nil, err
	}
	syncAuditRepository := repository.NewSyncAuditRepository(db)
	directoryAdminServiceImpl := provideDirectoryAdminService(httpClient, directoryConfig, codec, searchCacheStore, syncAuditRepository, configConfig)
	directoryHandler := handler.NewDirectoryHandler(directoryAdminServiceImpl)
	importJobRepository := repository.NewImportJobRepository(db)
	importArchive, err := provideImportArchive(configConfig, logger)
	if err != nil {
		return nil, err
	}
	importServiceImpl := provideImportService(importJobRepository, directoryAdminServiceImpl, importArchive, configConfig)
	importHandler := handler.NewImportHandler(importServiceImpl)
	principalHandler := handler.NewPrincipalHandler()
	auditHandler := handler.NewAuditHandler(syncAuditRepository)
	jwtManager := provideJWTManager(configConfig)
	principalResolver := service.NewPrincipalResolver(directoryConfig, codec)
	rateLimiterFunc := provideRateLimiter(configConfig, universalClient, jwtManager)
	dbIdempotencyStore := provideIdempotencyStore(db)
	idempotencyMiddlewareFactory := provideIdempotencyFactory(dbIdempotencyStore)
	probeRunner := provideReadinessProbeRunner(db, universalClient, httpClient)
	dependencies := provideRouterDependencies(directoryHandler, importHandler, principalHandler, auditHandler, jwtManager, principalResolver, rateLimiterFunc, idempotencyMiddlewareFactory, probeRunner, configConfig)
	httpHandler := router.NewRouter(dependencies)
	server := provideHTTPServer(configConfig, httpHandler)
	reconcileServiceImpl := service.NewReconcileService(httpClient, directoryConfig, codec, syncAuditRepository, logger)
	reconcileScheduler, err := provideReconcileScheduler(configConfig, reconcileServiceImpl, logger)
	if err != nil {
		return nil, err
	}
	retentionScheduler, err := provideRetentionScheduler(configConfig, db, logger)
	if err != nil {
		return nil, err
	}
	appApp := provideApp(configConfig, logger, server, runtime, db, universalClient, probeRunner, reconcileScheduler, retentionScheduler, dbIdempotencyStore)
	return appApp, nil
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	configConfig, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := provideOpenDB(configConfig)
	if err != nil {
		return nil, err
	}
	migrationRunner := NewMigrationRunner(db)
	return migrationRunner, nil
}
