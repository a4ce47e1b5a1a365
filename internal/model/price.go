package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot is one append-only entry in the CRX price history. The
// current price is always the most recently created row.
type PriceSnapshot struct {
	ID                  uint64           `gorm:"primaryKey"`
	Price               decimal.Decimal  `gorm:"type:numeric(20,6);not null"`
	ExpectedRisePercent *decimal.Decimal `gorm:"type:numeric(10,2)"`
	Note                string           `gorm:"size:256"`
	CreatedBy           string           `gorm:"size:128"`
	CreatedAt           time.Time        `gorm:"autoCreateTime;index"`
}

func (PriceSnapshot) TableName() string { return "price_snapshot" }
