package db

import (
	"fmt"

	"github.com/meridianbio/labsync/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the GORM models backing the journal.
func AllModels() []interface{} {
	return []interface{}{
		&models.StreamEvent{},
		&models.CommandAudit{},
	}
}

// AutoMigrate creates or updates the journal tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
