package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a deposit or withdrawal request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	// StatusPaid is a withdrawal-only terminal state after approval,
	// set once the payout has actually been sent.
	StatusPaid RequestStatus = "paid"
)

// DepositRequest is a user's claim of an external payment, pending an admin
// decision. Approval credits main_balance exactly once; rows are kept for
// audit and never deleted.
type DepositRequest struct {
	ID             uint64          `gorm:"primaryKey"`
	UserID         uint64          `gorm:"not null;index"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	SenderMobile   string          `gorm:"size:32"`
	TransactionRef string          `gorm:"size:128;not null;uniqueIndex"`
	ScreenshotRef  string          `gorm:"size:256"`
	Status         RequestStatus   `gorm:"size:16;not null;default:'pending';index"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	DecidedAt      *time.Time
}

func (DepositRequest) TableName() string { return "deposit_request" }

// WithdrawalRequest is a payout request. Approval debits referral, then
// bonus, then main; the per-bucket split is recorded so the decision can be
// reconciled later.
type WithdrawalRequest struct {
	ID            uint64          `gorm:"primaryKey"`
	UserID        uint64          `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Method        string          `gorm:"size:32;not null"`
	AccountNumber string          `gorm:"size:64;not null"`
	AccountLabel  string          `gorm:"size:64"`
	Status        RequestStatus   `gorm:"size:16;not null;default:'pending';index"`
	ReferralDebit decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	BonusDebit    decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	MainDebit     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	DecidedAt     *time.Time
	PaidAt        *time.Time
}

func (WithdrawalRequest) TableName() string { return "withdrawal_request" }
