package domain

import "time"

type IdempotencyRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Scope           string    `gorm:"size:64;not null;uniqueIndex:idx_idempotency_scope_key" json:"scope"`
	IdempotencyKey  string    `gorm:"size:128;not null;uniqueIndex:idx_idempotency_scope_key" json:"idempotency_key"`
	FingerprintHash string    `gorm:"size:64;not null" json:"fingerprint_hash"`
	Status          string    `gorm:"size:32;not null" json:"status"`
	ResponseStatus  int       `json:"response_status"`
	ResponseBody    []byte    `json:"-"`
	ContentType     string    `gorm:"size:128" json:"content_type"`
	ExpiresAt       time.Time `gorm:"not null;index:idx_idempotency_expires" json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
