package database

import (
	"context"
	"time"

	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/observability"

	"gorm.io/gorm"
)

type RetentionReport struct {
	DeletedAudits     int64 `json:"deleted_audits"`
	DeletedImportJobs int64 `json:"deleted_import_jobs"`
	DeletedImportRows int64 `json:"deleted_import_rows"`
}

// PruneRetention deletes audit entries and finished import jobs older than
// the given retention windows. Rows of pruned jobs go with the jobs; a job
// still pending or running is never pruned regardless of age.
func PruneRetention(db *gorm.DB, auditRetention, importRetention time.Duration, now time.Time) (*RetentionReport, error) {
	report := &RetentionReport{}

	if auditRetention > 0 {
		res := db.Where("created_at < ?", now.Add(-auditRetention)).Delete(&domain.SyncAudit{})
		if res.Error != nil {
			observability.RecordRepositoryOperation(context.Background(), "sync_audit", "prune", "error")
			return nil, res.Error
		}
		observability.RecordRepositoryOperation(context.Background(), "sync_audit", "prune", "success")
		report.DeletedAudits = res.RowsAffected
	}

	if importRetention > 0 {
		cutoff := now.Add(-importRetention)
		finished := []string{domain.ImportJobStatusCompleted, domain.ImportJobStatusFailed}

		var jobIDs []string
		if err := db.Model(&domain.ImportJob{}).
			Where("status IN ? AND created_at < ?", finished, cutoff).
			Pluck("id", &jobIDs).Error; err != nil {
			observability.RecordRepositoryOperation(context.Background(), "import_job", "prune", "error")
			return nil, err
		}
		if len(jobIDs) > 0 {
			res := db.Where("job_id IN ?", jobIDs).Delete(&domain.ImportRow{})
			if res.Error != nil {
				observability.RecordRepositoryOperation(context.Background(), "import_job", "prune", "error")
				return nil, res.Error
			}
			report.DeletedImportRows = res.RowsAffected

			res = db.Where("id IN ?", jobIDs).Delete(&domain.ImportJob{})
			if res.Error != nil {
				observability.RecordRepositoryOperation(context.Background(), "import_job", "prune", "error")
				return nil, res.Error
			}
			report.DeletedImportJobs = res.RowsAffected
		}
		observability.RecordRepositoryOperation(context.Background(), "import_job", "prune", "success")
	}

	return report, nil
}
