package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/model"
	"github.com/crxtrade/ledger/internal/notify"
	"github.com/crxtrade/ledger/internal/repo"
)

// withdrawalOrder is the fixed bucket priority when covering a payout.
var withdrawalOrder = []model.Bucket{model.BucketReferral, model.BucketBonus, model.BucketMain}

// RequestService runs the deposit/withdrawal lifecycle: pending →
// approved/rejected, with approval and the ledger mutation in one DB
// transaction. The conditional status flip is the gate that authorizes the
// mutation, so a second approval can never pay out twice.
type RequestService struct {
	repo          repo.RepositoryInterface
	ledger        *LedgerService
	minWithdrawal decimal.Decimal
	log           *zap.SugaredLogger
}

func NewRequestService(r repo.RepositoryInterface, ledger *LedgerService, minWithdrawal decimal.Decimal, logger *zap.SugaredLogger) *RequestService {
	return &RequestService{repo: r, ledger: ledger, minWithdrawal: minWithdrawal, log: logger}
}

// CreateDeposit records a user's claim of an external payment. The
// transaction reference is unique across all deposits so a timed-out caller
// re-submitting cannot create a duplicate.
func (s *RequestService) CreateDeposit(ctx context.Context, userID uint64, amount decimal.Decimal, senderMobile, transactionRef, screenshotRef string) (uint64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, ErrInvalidAmount
	}
	if strings.TrimSpace(transactionRef) == "" {
		return 0, ErrMissingField
	}
	req := &model.DepositRequest{
		UserID:         userID,
		Amount:         amount,
		SenderMobile:   senderMobile,
		TransactionRef: strings.TrimSpace(transactionRef),
		ScreenshotRef:  screenshotRef,
		Status:         model.StatusPending,
	}
	var count int64
	if err := s.repo.DB(ctx).Model(&model.DepositRequest{}).
		Where("transaction_ref = ?", req.TransactionRef).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, ErrDuplicateReference
	}
	if err := s.repo.DB(ctx).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateReference
		}
		return 0, err
	}
	s.emit(ctx, s.repo.DB(ctx), notify.Event{
		UserID: userID, Type: "deposit_submitted",
		Message: "Your deposit request has been received", Amount: amount,
		Metadata: map[string]interface{}{"request_id": req.ID},
	})
	return req.ID, nil
}

// ApproveDeposit credits main_balance exactly once. The pending→approved
// flip and the credit commit or roll back together.
func (s *RequestService) ApproveDeposit(ctx context.Context, id uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.DepositRequest
		if err := tx.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != model.StatusPending {
			return ErrAlreadyProcessed
		}
		flipped, err := s.repo.FlipDepositStatus(ctx, tx, id, model.StatusApproved)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyProcessed
		}
		if _, _, err := s.ledger.ApplyDeltaTx(ctx, tx, req.UserID, map[model.Bucket]decimal.Decimal{
			model.BucketMain: req.Amount,
		}); err != nil {
			return err
		}
		s.emit(ctx, tx, notify.Event{
			UserID: req.UserID, Type: "deposit_approved",
			Message: "Your deposit has been approved", Amount: req.Amount,
			Metadata: map[string]interface{}{"request_id": req.ID},
		})
		return nil
	})
}

// RejectDeposit marks a pending deposit rejected; the ledger is untouched.
func (s *RequestService) RejectDeposit(ctx context.Context, id uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.DepositRequest
		if err := tx.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		flipped, err := s.repo.FlipDepositStatus(ctx, tx, id, model.StatusRejected)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyProcessed
		}
		s.emit(ctx, tx, notify.Event{
			UserID: req.UserID, Type: "deposit_rejected",
			Message: "Your deposit request was rejected", Amount: req.Amount,
			Metadata: map[string]interface{}{"request_id": req.ID},
		})
		return nil
	})
}

// CreateWithdrawal validates and records a payout request.
func (s *RequestService) CreateWithdrawal(ctx context.Context, userID uint64, amount decimal.Decimal, method, accountNumber, accountLabel string) (uint64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, ErrInvalidAmount
	}
	if amount.LessThan(s.minWithdrawal) {
		return 0, ErrBelowMinimum
	}
	if strings.TrimSpace(method) == "" || strings.TrimSpace(accountNumber) == "" {
		return 0, ErrMissingField
	}
	req := &model.WithdrawalRequest{
		UserID:        userID,
		Amount:        amount,
		Method:        method,
		AccountNumber: accountNumber,
		AccountLabel:  accountLabel,
		Status:        model.StatusPending,
	}
	if err := s.repo.DB(ctx).Create(req).Error; err != nil {
		return 0, err
	}
	s.emit(ctx, s.repo.DB(ctx), notify.Event{
		UserID: userID, Type: "withdrawal_submitted",
		Message: "Your withdrawal request has been received", Amount: amount,
		Metadata: map[string]interface{}{"request_id": req.ID},
	})
	return req.ID, nil
}

// ApproveWithdrawal debits referral, then bonus, then main, each capped at
// the bucket's current balance, until the amount is covered. The split is
// computed against the balances the CAS write is conditioned on, so a
// concurrent mutation forces a recompute rather than an overdraft.
func (s *RequestService) ApproveWithdrawal(ctx context.Context, id uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.WithdrawalRequest
		if err := tx.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.Status != model.StatusPending {
			return ErrAlreadyProcessed
		}
		flipped, err := s.repo.FlipWithdrawalStatus(ctx, tx, id, model.StatusPending, model.StatusApproved)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyProcessed
		}
		_, _, applied, err := s.ledger.mutate(ctx, tx, req.UserID, func(w *model.Wallet) (map[model.Bucket]decimal.Decimal, error) {
			deltas := make(map[model.Bucket]decimal.Decimal, len(withdrawalOrder))
			remaining := req.Amount
			for _, b := range withdrawalOrder {
				if remaining.IsZero() {
					break
				}
				take := decimal.Min(w.Balance(b), remaining)
				if take.IsPositive() {
					deltas[b] = take.Neg()
					remaining = remaining.Sub(take)
				}
			}
			if remaining.IsPositive() {
				return nil, &InsufficientFundsError{
					Bucket:    model.BucketMain,
					Required:  remaining,
					Available: w.MainBalance,
				}
			}
			return deltas, nil
		})
		if err != nil {
			return err
		}
		debits := map[string]interface{}{
			"referral_debit": applied[model.BucketReferral].Neg(),
			"bonus_debit":    applied[model.BucketBonus].Neg(),
			"main_debit":     applied[model.BucketMain].Neg(),
		}
		if err := tx.Model(&model.WithdrawalRequest{}).Where("id = ?", id).Updates(debits).Error; err != nil {
			return err
		}
		s.emit(ctx, tx, notify.Event{
			UserID: req.UserID, Type: "withdrawal_approved",
			Message: "Your withdrawal has been approved", Amount: req.Amount,
			Metadata: map[string]interface{}{"request_id": req.ID},
		})
		return nil
	})
}

// RejectWithdrawal marks a pending withdrawal rejected.
func (s *RequestService) RejectWithdrawal(ctx context.Context, id uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.WithdrawalRequest
		if err := tx.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		flipped, err := s.repo.FlipWithdrawalStatus(ctx, tx, id, model.StatusPending, model.StatusRejected)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyProcessed
		}
		s.emit(ctx, tx, notify.Event{
			UserID: req.UserID, Type: "withdrawal_rejected",
			Message: "Your withdrawal request was rejected", Amount: req.Amount,
			Metadata: map[string]interface{}{"request_id": req.ID},
		})
		return nil
	})
}

// MarkWithdrawalPaid records that an approved payout was actually sent.
func (s *RequestService) MarkWithdrawalPaid(ctx context.Context, id uint64) error {
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.WithdrawalRequest
		if err := tx.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		flipped, err := s.repo.FlipWithdrawalStatus(ctx, tx, id, model.StatusApproved, model.StatusPaid)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyProcessed
		}
		s.emit(ctx, tx, notify.Event{
			UserID: req.UserID, Type: "withdrawal_paid",
			Message: "Your withdrawal has been paid out", Amount: req.Amount,
			Metadata: map[string]interface{}{"request_id": req.ID},
		})
		return nil
	})
}

// UserDeposits lists a user's deposit requests, newest first.
func (s *RequestService) UserDeposits(ctx context.Context, userID uint64, limit int) ([]model.DepositRequest, error) {
	var reqs []model.DepositRequest
	err := s.repo.DB(ctx).Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&reqs).Error
	return reqs, err
}

// UserWithdrawals lists a user's withdrawal requests, newest first.
func (s *RequestService) UserWithdrawals(ctx context.Context, userID uint64, limit int) ([]model.WithdrawalRequest, error) {
	var reqs []model.WithdrawalRequest
	err := s.repo.DB(ctx).Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&reqs).Error
	return reqs, err
}

// PendingDeposits lists deposits awaiting an admin decision, oldest first.
func (s *RequestService) PendingDeposits(ctx context.Context, limit int) ([]model.DepositRequest, error) {
	var reqs []model.DepositRequest
	err := s.repo.DB(ctx).Where("status = ?", model.StatusPending).Order("created_at").Limit(limit).Find(&reqs).Error
	return reqs, err
}

// PendingWithdrawals lists withdrawals awaiting an admin decision, oldest
// first.
func (s *RequestService) PendingWithdrawals(ctx context.Context, limit int) ([]model.WithdrawalRequest, error) {
	var reqs []model.WithdrawalRequest
	err := s.repo.DB(ctx).Where("status = ?", model.StatusPending).Order("created_at").Limit(limit).Find(&reqs).Error
	return reqs, err
}

func (s *RequestService) emit(ctx context.Context, tx *gorm.DB, e notify.Event) {
	stageEvent(ctx, tx, s.repo, s.log, e)
}
