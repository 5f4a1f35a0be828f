package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records story actions: choices, battles, saves, item use.
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	SessionID string         `gorm:"index:idx_audit_session;size:36;not null" json:"session_id"`
	StoryID   string         `gorm:"size:64" json:"story_id"`
	Action    string         `gorm:"size:64;not null" json:"action"`
	Detail    datatypes.JSON `json:"detail"`
	Error     string         `gorm:"type:text" json:"error"`
	CreatedAt time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
