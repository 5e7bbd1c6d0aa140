package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/observability"
)

var ErrImportJobNotFound = errors.New("import job not found")

type ImportJobRepository interface {
	Create(job *domain.ImportJob) error
	FindByID(id string) (*domain.ImportJob, error)
	ListPaged(req PageRequest) (PageResult[domain.ImportJob], error)
	MarkRunning(id string, startedAt time.Time) error
	MarkFinished(id string, status string, applied, failed int, jobErr string, finishedAt time.Time) error
	AppendRows(rows []domain.ImportRow) error
	RowsForJob(id string) ([]domain.ImportRow, error)
}

type GormImportJobRepository struct{ db *gorm.DB }

func NewImportJobRepository(db *gorm.DB) ImportJobRepository {
	return &GormImportJobRepository{db: db}
}

func (r *GormImportJobRepository) Create(job *domain.ImportJob) error {
	if err := r.db.Create(job).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "import_job", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "import_job", "create", "success")
	return nil
}

func (r *GormImportJobRepository) FindByID(id string) (*domain.ImportJob, error) {
	var job domain.ImportJob
	if err := r.db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "import_job", "find_by_id", "not_found")
			return nil, ErrImportJobNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "import_job", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "import_job", "find_by_id", "success")
	return &job, nil
}

func (r *GormImportJobRepository) ListPaged(req PageRequest) (PageResult[domain.ImportJob], error) {
	normalized := normalizePageRequest(req)
	result := PageResult[domain.ImportJob]{
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}

	base := r.db.Model(&domain.ImportJob{})
	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "import_job", "list_paged", "error")
		return PageResult[domain.ImportJob]{}, err
	}
	offset := (normalized.Page - 1) * normalized.PageSize
	if err := base.Order("created_at desc").Offset(offset).Limit(normalized.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "import_job", "list_paged", "error")
		return PageResult[domain.ImportJob]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "import_job", "list_paged", "success")
	return result, nil
}

func (r *GormImportJobRepository) MarkRunning(id string, startedAt time.Time) error {
	return r.updateJob(id, map[string]any{
		"status":     domain.ImportJobStatusRunning,
		"started_at": startedAt,
	}, "mark_running")
}

func (r *GormImportJobRepository) MarkFinished(id string, status string, applied, failed int, jobErr string, finishedAt time.Time) error {
	return r.updateJob(id, map[string]any{
		"status":       status,
		"applied_rows": applied,
		"failed_rows":  failed,
		"error":        jobErr,
		"finished_at":  finishedAt,
	}, "mark_finished")
}

func (r *GormImportJobRepository) updateJob(id string, updates map[string]any, op string) error {
	res := r.db.Model(&domain.ImportJob{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "import_job", op, "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "import_job", op, "not_found")
		return ErrImportJobNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "import_job", op, "success")
	return nil
}

func (r *GormImportJobRepository) AppendRows(rows []domain.ImportRow) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.Create(&rows).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "import_row", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "import_row", "append", "success")
	return nil
}

func (r *GormImportJobRepository) RowsForJob(id string) ([]domain.ImportRow, error) {
	var rows []domain.ImportRow
	if err := r.db.Where("job_id = ?", id).Order("line_no asc").Find(&rows).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "import_row", "list_for_job", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "import_row", "list_for_job", "success")
	return rows, nil
}
