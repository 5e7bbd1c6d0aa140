package domain

import "time"

const (
	ImportJobStatusPending   = "pending"
	ImportJobStatusRunning   = "running"
	ImportJobStatusCompleted = "completed"
	ImportJobStatusFailed    = "failed"
)

type ImportJob struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	FileName    string      `gorm:"size:255;not null" json:"file_name"`
	Status      string      `gorm:"size:32;not null;default:pending;index:idx_import_jobs_status" json:"status"`
	RequestedBy string      `gorm:"size:255;not null" json:"requested_by"`
	TotalRows   int         `gorm:"not null;default:0" json:"total_rows"`
	AppliedRows int         `gorm:"not null;default:0" json:"applied_rows"`
	FailedRows  int         `gorm:"not null;default:0" json:"failed_rows"`
	Error       string      `gorm:"size:2048" json:"error,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Rows        []ImportRow `gorm:"foreignKey:JobID" json:"rows,omitempty"`
}

const (
	ImportRowStatusApplied = "applied"
	ImportRowStatusSkipped = "skipped"
	ImportRowStatusFailed  = "failed"
)

type ImportRow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"size:36;not null;index:idx_import_rows_job" json:"job_id"`
	LineNo    int       `gorm:"not null" json:"line_no"`
	GroupName string    `gorm:"size:255;not null" json:"group_name"`
	UserID    string    `gorm:"size:255;not null" json:"user_id"`
	Action    string    `gorm:"size:16;not null" json:"action"`
	Status    string    `gorm:"size:32;not null" json:"status"`
	Error     string    `gorm:"size:1024" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
