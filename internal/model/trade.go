package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeDirection is the side of a CRX conversion.
type TradeDirection string

const (
	TradeBuy  TradeDirection = "BUY"
	TradeSell TradeDirection = "SELL"
)

// AssetTransaction is the append-only journal row written alongside every
// CRX trade. Before/after figures come from the applied deltas, so for every
// row main_after-main_before equals the signed USD amount and
// crx_after-crx_before the signed asset amount.
type AssetTransaction struct {
	ID         uint64          `gorm:"primaryKey"`
	UserID     uint64          `gorm:"not null;index"`
	Direction  TradeDirection  `gorm:"size:8;not null"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	CrxAmount  decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	UsdAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	MainBefore decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	MainAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	CrxBefore  decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	CrxAfter   decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (AssetTransaction) TableName() string { return "asset_transaction" }
