package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket names one sub-balance inside a wallet.
type Bucket string

const (
	BucketMain     Bucket = "main"
	BucketReferral Bucket = "referral"
	BucketBonus    Bucket = "bonus"
	BucketCrx      Bucket = "crx"
)

// Wallet holds one user's bucket balances. Rows are created lazily on first
// access and updated only through the version-guarded conditional write in
// the repository, never by plain read-modify-write.
type Wallet struct {
	UserID          uint64          `gorm:"primaryKey;column:user_id"`
	MainBalance     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	ReferralBalance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	BonusBalance    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	CrxBalance      decimal.Decimal `gorm:"type:numeric(20,6);not null;default:'0'"`
	Version         uint64          `gorm:"not null;default:0"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallet" }

// Balance returns the named bucket's current amount.
func (w *Wallet) Balance(b Bucket) decimal.Decimal {
	switch b {
	case BucketMain:
		return w.MainBalance
	case BucketReferral:
		return w.ReferralBalance
	case BucketBonus:
		return w.BonusBalance
	case BucketCrx:
		return w.CrxBalance
	}
	return decimal.Zero
}

// SetBalance overwrites the named bucket's amount on the in-memory copy.
func (w *Wallet) SetBalance(b Bucket, v decimal.Decimal) {
	switch b {
	case BucketMain:
		w.MainBalance = v
	case BucketReferral:
		w.ReferralBalance = v
	case BucketBonus:
		w.BonusBalance = v
	case BucketCrx:
		w.CrxBalance = v
	}
}

// Total is the USD-denominated total (main + referral + bonus). The crx
// bucket is asset-denominated and valued separately at the current price.
func (w *Wallet) Total() decimal.Decimal {
	return w.MainBalance.Add(w.ReferralBalance).Add(w.BonusBalance)
}
