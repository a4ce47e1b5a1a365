package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BonusCodeStatus is the lifecycle state of a promotional code.
type BonusCodeStatus string

const (
	BonusActive  BonusCodeStatus = "active"
	BonusExpired BonusCodeStatus = "expired"
)

// BonusCode is a finite-use promotional code. Codes are stored uppercase and
// flip to expired exactly when used_count reaches max_uses; the flip is
// irreversible.
type BonusCode struct {
	ID            uint64          `gorm:"primaryKey"`
	Code          string          `gorm:"size:64;not null;uniqueIndex"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	PerUserAmount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	MaxUses       int             `gorm:"not null"`
	UsedCount     int             `gorm:"not null;default:0"`
	Status        BonusCodeStatus `gorm:"size:16;not null;default:'active'"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
}

func (BonusCode) TableName() string { return "bonus_code" }

// BonusRedemption records one user's use of a code. The composite unique
// index is what makes "each user at most once" hold under concurrency.
type BonusRedemption struct {
	ID         uint64    `gorm:"primaryKey"`
	BonusID    uint64    `gorm:"not null;uniqueIndex:idx_bonus_user"`
	UserID     uint64    `gorm:"not null;uniqueIndex:idx_bonus_user"`
	RedeemedAt time.Time `gorm:"autoCreateTime"`
}

func (BonusRedemption) TableName() string { return "bonus_redemption" }
