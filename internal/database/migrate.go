package database

import (
	"github.com/reposync/admin-backend/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.ImportJob{},
		&domain.ImportRow{},
		&domain.SyncAudit{},
		&domain.IdempotencyRecord{},
	)
}
