package model

import "time"

// OutboxEvent is a pending notification for the external notification
// collaborator. Rows are written in the same DB transaction as the ledger
// mutation they describe and shipped to Kafka by cmd/notifier; delivery
// failures never affect the mutation that produced them.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	UserID      uint64    `gorm:"not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
