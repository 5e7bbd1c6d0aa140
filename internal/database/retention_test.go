package database

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reposync/admin-backend/internal/domain"
)

func newDatabaseForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPruneRetention(t *testing.T) {
	db := newDatabaseForTest(t)
	now := time.Now().UTC()
	old := now.Add(-100 * 24 * time.Hour)

	audits := []domain.SyncAudit{
		{ActorID: "a1", TargetType: "user", TargetID: "u1", Action: "update", Outcome: "success", CreatedAt: old},
		{ActorID: "a1", TargetType: "user", TargetID: "u2", Action: "update", Outcome: "success", CreatedAt: now},
	}
	for i := range audits {
		if err := db.Create(&audits[i]).Error; err != nil {
			t.Fatalf("create audit: %v", err)
		}
	}

	jobs := []domain.ImportJob{
		{ID: "old-done", FileName: "a.csv", Status: domain.ImportJobStatusCompleted, RequestedBy: "a1", CreatedAt: old},
		{ID: "old-running", FileName: "b.csv", Status: domain.ImportJobStatusRunning, RequestedBy: "a1", CreatedAt: old},
		{ID: "fresh-done", FileName: "c.csv", Status: domain.ImportJobStatusCompleted, RequestedBy: "a1", CreatedAt: now},
	}
	for i := range jobs {
		if err := db.Create(&jobs[i]).Error; err != nil {
			t.Fatalf("create job: %v", err)
		}
	}
	rows := []domain.ImportRow{
		{JobID: "old-done", LineNo: 1, GroupName: "g", UserID: "u", Action: "add", Status: domain.ImportRowStatusApplied},
		{JobID: "fresh-done", LineNo: 1, GroupName: "g", UserID: "u", Action: "add", Status: domain.ImportRowStatusApplied},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create row: %v", err)
		}
	}

	report, err := PruneRetention(db, 90*24*time.Hour, 30*24*time.Hour, now)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if report.DeletedAudits != 1 {
		t.Fatalf("expected 1 pruned audit, got %d", report.DeletedAudits)
	}
	if report.DeletedImportJobs != 1 {
		t.Fatalf("expected 1 pruned job, got %d", report.DeletedImportJobs)
	}
	if report.DeletedImportRows != 1 {
		t.Fatalf("expected 1 pruned row, got %d", report.DeletedImportRows)
	}

	var remainingJobs []domain.ImportJob
	if err := db.Find(&remainingJobs).Error; err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	ids := make(map[string]struct{}, len(remainingJobs))
	for _, j := range remainingJobs {
		ids[j.ID] = struct{}{}
	}
	if _, ok := ids["old-running"]; !ok {
		t.Fatal("running job must survive retention")
	}
	if _, ok := ids["fresh-done"]; !ok {
		t.Fatal("recent job must survive retention")
	}
	if _, ok := ids["old-done"]; ok {
		t.Fatal("expired finished job must be pruned")
	}
}

func TestPruneRetentionDisabled(t *testing.T) {
	db := newDatabaseForTest(t)
	old := time.Now().UTC().Add(-365 * 24 * time.Hour)
	audit := domain.SyncAudit{ActorID: "a1", TargetType: "user", TargetID: "u1", Action: "update", Outcome: "success", CreatedAt: old}
	if err := db.Create(&audit).Error; err != nil {
		t.Fatalf("create audit: %v", err)
	}

	report, err := PruneRetention(db, 0, 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if report.DeletedAudits != 0 || report.DeletedImportJobs != 0 {
		t.Fatalf("expected no deletions, got %+v", report)
	}

	var count int64
	if err := db.Model(&domain.SyncAudit{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatal("audit must survive when retention is disabled")
	}
}
