package domain

import "time"

type SyncAudit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    string    `gorm:"size:255;not null;index:idx_sync_audits_actor" json:"actor_id"`
	TargetType string    `gorm:"size:32;not null" json:"target_type"`
	TargetID   string    `gorm:"size:255;not null;index:idx_sync_audits_target" json:"target_id"`
	Action     string    `gorm:"size:32;not null" json:"action"`
	Outcome    string    `gorm:"size:32;not null" json:"outcome"`
	Detail     string    `gorm:"size:2048" json:"detail,omitempty"`
	RequestID  string    `gorm:"size:64" json:"request_id,omitempty"`
	CreatedAt  time.Time `gorm:"index:idx_sync_audits_created" json:"created_at"`
}
