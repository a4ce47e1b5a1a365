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

// BonusService manages finite-use promotional codes. The used_count bump is
// a conditional update, so two racing redemptions of the last use cannot
// both win, and the (code, user) unique index keeps any user to one
// redemption.
type BonusService struct {
	repo   repo.RepositoryInterface
	ledger *LedgerService
	log    *zap.SugaredLogger
}

func NewBonusService(r repo.RepositoryInterface, ledger *LedgerService, logger *zap.SugaredLogger) *BonusService {
	return &BonusService{repo: r, ledger: ledger, log: logger}
}

// Generate creates a promotional code. Codes are canonicalized to uppercase
// so redemption lookups are case-insensitive.
func (s *BonusService) Generate(ctx context.Context, code string, totalAmount, perUserAmount decimal.Decimal, maxUses int) (*model.BonusCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrMissingField
	}
	if totalAmount.LessThanOrEqual(decimal.Zero) || perUserAmount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if maxUses <= 0 {
		return nil, ErrInvalidAmount
	}
	bc := &model.BonusCode{
		Code:          code,
		TotalAmount:   totalAmount,
		PerUserAmount: perUserAmount,
		MaxUses:       maxUses,
		Status:        model.BonusActive,
	}
	if err := s.repo.DB(ctx).Create(bc).Error; err != nil {
		return nil, err
	}
	return bc, nil
}

// RedeemResult reports a successful redemption.
type RedeemResult struct {
	CreditedAmount decimal.Decimal
	RemainingUses  int
}

// Redeem credits the caller's bonus bucket once. Checked in order: code
// exists, code active, uses remain, user has not redeemed before. The bump,
// the redemption row, and the credit commit atomically; losing the bump race
// re-reads and re-checks instead of silently succeeding.
func (s *BonusService) Redeem(ctx context.Context, userID uint64, code string) (*RedeemResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCodeNotFound
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		var bc model.BonusCode
		if err := s.repo.DB(ctx).Where("code = ?", code).First(&bc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCodeNotFound
			}
			return nil, err
		}
		if bc.Status != model.BonusActive {
			return nil, ErrCodeExpired
		}
		if bc.UsedCount >= bc.MaxUses {
			// Should have been expired at the cap; repair the flag and
			// reject.
			if err := s.repo.DB(ctx).Model(&model.BonusCode{}).
				Where("id = ? AND status = ?", bc.ID, model.BonusActive).
				Update("status", model.BonusExpired).Error; err != nil {
				s.log.Warnf("expire code %s: %v", bc.Code, err)
			}
			return nil, ErrCodeExpired
		}

		var redeemed int64
		if err := s.repo.DB(ctx).Model(&model.BonusRedemption{}).
			Where("bonus_id = ? AND user_id = ?", bc.ID, userID).Count(&redeemed).Error; err != nil {
			return nil, err
		}
		if redeemed > 0 {
			return nil, ErrAlreadyRedeemed
		}

		var lost bool
		err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			expire := bc.UsedCount+1 == bc.MaxUses
			ok, err := s.repo.ConsumeBonusUse(ctx, tx, bc.ID, bc.UsedCount, expire)
			if err != nil {
				return err
			}
			if !ok {
				lost = true
				return repo.ErrVersionConflict
			}
			if err := tx.Create(&model.BonusRedemption{BonusID: bc.ID, UserID: userID}).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyRedeemed
				}
				return err
			}
			if _, _, err := s.ledger.ApplyDeltaTx(ctx, tx, userID, map[model.Bucket]decimal.Decimal{
				model.BucketBonus: bc.PerUserAmount,
			}); err != nil {
				return err
			}
			stageEvent(ctx, tx, s.repo, s.log, notify.Event{
				UserID: userID, Type: "bonus_redeemed",
				Message: "Bonus code " + bc.Code + " redeemed", Amount: bc.PerUserAmount,
				Metadata: map[string]interface{}{"code": bc.Code},
			})
			return nil
		})
		if err != nil {
			if lost {
				continue
			}
			return nil, err
		}
		return &RedeemResult{
			CreditedAmount: bc.PerUserAmount,
			RemainingUses:  bc.MaxUses - bc.UsedCount - 1,
		}, nil
	}
	return nil, repo.ErrVersionConflict
}

// Codes lists promotional codes, newest first.
func (s *BonusService) Codes(ctx context.Context, limit int) ([]model.BonusCode, error) {
	var codes []model.BonusCode
	err := s.repo.DB(ctx).Order("created_at desc").Limit(limit).Find(&codes).Error
	return codes, err
}
