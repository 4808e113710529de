package database

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nearbytix/nearbytix/internal/models"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Event{}, &models.Ticket{}); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Partial index: keeps the sweep's stale-reservation scan cheap
	db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ticket_reserved_expires_at
		ON tickets (expires_at)
		WHERE status = 'reserved' AND expires_at IS NOT NULL
	`)

	return db
}
