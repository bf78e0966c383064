package indexer

import (
	"time"

	"gorm.io/gorm"
)

// EventRecord is one committed node event. Attributes are stored as a JSON
// object so the archive stays queryable from plain SQL.
type EventRecord struct {
	Sequence   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type       string `gorm:"size:64;index"`
	Timestamp  int64  `gorm:"index"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// IdempotencyRecord stores the response served for an Idempotency-Key so a
// retried request replays it instead of executing twice.
type IdempotencyRecord struct {
	Key         string `gorm:"primaryKey;size:128"`
	Principal   string `gorm:"primaryKey;size:128"`
	RequestHash string `gorm:"size:64"`
	RequestID   string `gorm:"size:64"`
	Method      string `gorm:"size:64"`
	Status      int
	Response    string `gorm:"type:text"`
	CreatedAt   time.Time
}

// AutoMigrate performs all schema migrations for the archive.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EventRecord{},
		&IdempotencyRecord{},
	)
}
