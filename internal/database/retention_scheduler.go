package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// RetentionScheduler prunes expired audit and import data on a cron schedule.
type RetentionScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewRetentionScheduler(spec string, db *gorm.DB, auditRetention, importRetention time.Duration, logger *slog.Logger) (*RetentionScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		report, err := PruneRetention(db, auditRetention, importRetention, time.Now().UTC())
		if err != nil {
			logger.Error("retention prune failed", slog.String("error", err.Error()))
			return
		}
		logger.Info("retention prune finished",
			slog.Int64("deleted_audits", report.DeletedAudits),
			slog.Int64("deleted_import_jobs", report.DeletedImportJobs),
			slog.Int64("deleted_import_rows", report.DeletedImportRows))
	})
	if err != nil {
		return nil, fmt.Errorf("bad retention schedule %q: %w", spec, err)
	}
	return &RetentionScheduler{cron: c, logger: logger}, nil
}

func (s *RetentionScheduler) Start() { s.cron.Start() }

func (s *RetentionScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
