package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/reposync/admin-backend/internal/domain"
	"github.com/reposync/admin-backend/internal/observability"
)

type SyncAuditRepository interface {
	Record(audit *domain.SyncAudit) error
	ListPaged(req PageRequest) (PageResult[domain.SyncAudit], error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

type GormSyncAuditRepository struct{ db *gorm.DB }

func NewSyncAuditRepository(db *gorm.DB) SyncAuditRepository {
	return &GormSyncAuditRepository{db: db}
}

func (r *GormSyncAuditRepository) Record(audit *domain.SyncAudit) error {
	if err := r.db.Create(audit).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "sync_audit", "record", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "sync_audit", "record", "success")
	return nil
}

func (r *GormSyncAuditRepository) ListPaged(req PageRequest) (PageResult[domain.SyncAudit], error) {
	normalized := normalizePageRequest(req)
	result := PageResult[domain.SyncAudit]{
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}

	base := r.db.Model(&domain.SyncAudit{})
	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "sync_audit", "list_paged", "error")
		return PageResult[domain.SyncAudit]{}, err
	}
	offset := (normalized.Page - 1) * normalized.PageSize
	if err := base.Order("created_at desc").Offset(offset).Limit(normalized.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "sync_audit", "list_paged", "error")
		return PageResult[domain.SyncAudit]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "sync_audit", "list_paged", "success")
	return result, nil
}

func (r *GormSyncAuditRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&domain.SyncAudit{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "sync_audit", "delete_older_than", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "sync_audit", "delete_older_than", "success")
	return res.RowsAffected, nil
}
