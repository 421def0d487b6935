// Package journal persists received stream messages and issued commands
// for audit and offline replay. Writes are best-effort: a journal failure
// is logged and never blocks reconciliation.
package journal

import (
	"encoding/json"
	"log"
	"time"

	"github.com/meridianbio/labsync/internal/models"
	"github.com/meridianbio/labsync/internal/stream"
	"gorm.io/gorm"
)

// Journal writes audit rows through a GORM connection.
type Journal struct {
	db *gorm.DB
}

// New creates a Journal over an open connection.
func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// RecordEvent stores one received stream message verbatim.
func (j *Journal) RecordEvent(env stream.Envelope) {
	var lifted struct {
		ResumeToken string `json:"resume_token"`
	}
	json.Unmarshal(env.Raw, &lifted)

	row := models.StreamEvent{
		SessionID:   env.SessionID,
		OverrideID:  env.OverrideID,
		Type:        env.Type,
		ResumeToken: lifted.ResumeToken,
		Payload:     string(env.Raw),
		ReceivedAt:  env.ReceivedAt,
	}
	if err := j.db.Create(&row).Error; err != nil {
		log.Printf("journal: record event %s/%s: %v", env.SessionID, env.Type, err)
	}
}

// RecordCommand stores the outcome of one control-plane command.
func (j *Journal) RecordCommand(sessionID, command string, latency time.Duration, cmdErr error) {
	row := models.CommandAudit{
		SessionID: sessionID,
		Command:   command,
		Succeeded: cmdErr == nil,
		LatencyMs: int(latency.Milliseconds()),
	}
	if cmdErr != nil {
		row.Error = cmdErr.Error()
	}
	if err := j.db.Create(&row).Error; err != nil {
		log.Printf("journal: record command %s/%s: %v", sessionID, command, err)
	}
}

// Events returns the stored stream messages for a session, oldest first.
func (j *Journal) Events(sessionID string, limit int) ([]models.StreamEvent, error) {
	var rows []models.StreamEvent
	q := j.db.Where("session_id = ?", sessionID).Order("received_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Commands returns the stored command audits for a session, oldest first.
func (j *Journal) Commands(sessionID string, limit int) ([]models.CommandAudit, error) {
	var rows []models.CommandAudit
	q := j.db.Where("session_id = ?", sessionID).Order("created_at asc, id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
