package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/reposync/admin-backend/internal/config"
	"github.com/reposync/admin-backend/internal/database"
	"github.com/reposync/admin-backend/internal/health"
	"github.com/reposync/admin-backend/internal/observability"
	"github.com/reposync/admin-backend/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Readiness     *health.ProbeRunner
	Reconciler    *service.ReconcileScheduler
	Retention     *database.RetentionScheduler

	// StopBackground halts background loops that are not cron-driven.
	StopBackground func()

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
	reconciler *service.ReconcileScheduler,
	retention *database.RetentionScheduler,
	stopBackground func(),
) *App {
	return &App{
		Config:         cfg,
		Logger:         logger,
		Server:         server,
		Observability:  runtime,
		DB:             db,
		Redis:          redisClient,
		Readiness:      readiness,
		Reconciler:     reconciler,
		Retention:      retention,
		StopBackground: stopBackground,

		ShutdownTimeout:              20 * time.Second,
		ShutdownHTTPDrainTimeout:     10 * time.Second,
		ShutdownObservabilityTimeout: 8 * time.Second,
	}
}

// StartSchedulers begins the cron-driven background work.
func (a *App) StartSchedulers() {
	if a.Reconciler != nil {
		a.Reconciler.Start()
	}
	if a.Retention != nil {
		a.Retention.Start()
	}
}

// StopSchedulers waits for in-flight scheduled runs to finish.
func (a *App) StopSchedulers() {
	if a.Reconciler != nil {
		a.Reconciler.Stop()
	}
	if a.Retention != nil {
		a.Retention.Stop()
	}
	if a.StopBackground != nil {
		a.StopBackground()
	}
}
