package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/crxtrade/ledger/internal/model"
)

// Error taxonomy surfaced to callers. None of these are retried by the
// ledger itself; they are terminal for the call that produced them.
var (
	// ErrInvalidAmount means a non-positive amount passed.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrBelowMinimum means a withdrawal under the configured minimum.
	ErrBelowMinimum = errors.New("amount below withdrawal minimum")
	// ErrMissingField means a required request field was empty.
	ErrMissingField = errors.New("required field missing")
	// ErrNotFound means an unknown request or record id.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyProcessed is the idempotency guard on lifecycle transitions.
	ErrAlreadyProcessed = errors.New("request already processed")
	// ErrDuplicateReference means the external transaction reference was
	// already submitted.
	ErrDuplicateReference = errors.New("transaction reference already used")
	// ErrInsufficientFunds matches any *InsufficientFundsError via errors.Is.
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrCodeNotFound    = errors.New("bonus code not found")
	ErrCodeExpired     = errors.New("bonus code expired")
	ErrAlreadyRedeemed = errors.New("bonus code already redeemed")
)

// InsufficientFundsError reports which bucket fell short and by how much.
type InsufficientFundsError struct {
	Bucket    model.Bucket
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s bucket: required %s, available %s",
		e.Bucket, e.Required, e.Available)
}

// Is lets errors.Is(err, ErrInsufficientFunds) match the typed error.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
