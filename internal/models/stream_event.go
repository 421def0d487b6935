package models

import "time"

// StreamEvent is one received stream message, stored verbatim for audit and
// offline replay.
type StreamEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	SessionID   string    `gorm:"size:64;index:idx_session_received"`
	OverrideID  string    `gorm:"size:64;index"`
	Type        string    `gorm:"size:32;index"`
	ResumeToken string    `gorm:"size:128"`
	Payload     string    `gorm:"type:mediumtext"`
	ReceivedAt  time.Time `gorm:"index:idx_session_received"`
	CreatedAt   time.Time
}
