package models

import "time"

// CommandAudit records one control-plane command and its outcome.
type CommandAudit struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:64;index"`
	Command   string `gorm:"size:32"`
	Succeeded bool
	Error     string `gorm:"type:text"`
	LatencyMs int
	CreatedAt time.Time
}
