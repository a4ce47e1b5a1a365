package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/model"
	"github.com/crxtrade/ledger/internal/repo"
)

// maxCASRetries bounds the re-read/re-apply loop on version conflicts.
const maxCASRetries = 5

// LedgerService owns the wallet rows and the single mutation primitive every
// other component goes through. A balance change is always one conditional
// write: read the wallet, compute the new buckets, write guarded by the
// version that was read, retry on conflict.
type LedgerService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewLedgerService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *LedgerService {
	return &LedgerService{repo: r, log: logger}
}

// mutator derives the bucket deltas to apply from the wallet's current
// state. It is re-invoked on every CAS retry so the deltas are always
// computed against fresh balances.
type mutator func(w *model.Wallet) (map[model.Bucket]decimal.Decimal, error)

// fixedDeltas is the mutator for callers that already know their deltas.
func fixedDeltas(deltas map[model.Bucket]decimal.Decimal) mutator {
	return func(*model.Wallet) (map[model.Bucket]decimal.Decimal, error) {
		return deltas, nil
	}
}

// getOrCreate materializes a zero-balance wallet on first access. Absence is
// never an error.
func (s *LedgerService) getOrCreate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	w, err := s.repo.GetWallet(ctx, tx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := s.repo.CreateWallet(ctx, tx, &model.Wallet{UserID: userID}); err != nil {
		return nil, err
	}
	return s.repo.GetWallet(ctx, tx, userID)
}

// mutate runs the check-and-apply loop inside the caller's transaction and
// returns the wallet before and after, plus the deltas that were applied.
// Any delta that would drive a bucket negative fails the whole call with no
// partial effect.
func (s *LedgerService) mutate(ctx context.Context, tx *gorm.DB, userID uint64, fn mutator) (before, after model.Wallet, applied map[model.Bucket]decimal.Decimal, err error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		w, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return model.Wallet{}, model.Wallet{}, nil, err
		}
		deltas, err := fn(w)
		if err != nil {
			return model.Wallet{}, model.Wallet{}, nil, err
		}
		next := *w
		for b, d := range deltas {
			nb := w.Balance(b).Add(d)
			if nb.IsNegative() {
				return model.Wallet{}, model.Wallet{}, nil, &InsufficientFundsError{
					Bucket:    b,
					Required:  d.Neg(),
					Available: w.Balance(b),
				}
			}
			next.SetBalance(b, nb)
		}
		if err := s.repo.UpdateWalletBuckets(ctx, tx, &next, w.Version); err != nil {
			if errors.Is(err, repo.ErrVersionConflict) {
				continue
			}
			return model.Wallet{}, model.Wallet{}, nil, err
		}
		next.Version = w.Version + 1
		if err := s.repo.CacheWallet(ctx, &next); err != nil {
			s.log.Warnf("cache wallet %d: %v", userID, err)
		}
		return *w, next, deltas, nil
	}
	return model.Wallet{}, model.Wallet{}, nil, repo.ErrVersionConflict
}

// ApplyDelta applies a fixed set of bucket deltas in its own transaction and
// returns the resulting wallet.
func (s *LedgerService) ApplyDelta(ctx context.Context, userID uint64, deltas map[model.Bucket]decimal.Decimal) (model.Wallet, error) {
	var after model.Wallet
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		_, after, _, err = s.mutate(ctx, tx, userID, fixedDeltas(deltas))
		return err
	})
	return after, err
}

// ApplyDeltaTx is ApplyDelta scoped to the caller's transaction, for
// components that must pair the mutation with another write (a status flip,
// a redemption row) atomically.
func (s *LedgerService) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, userID uint64, deltas map[model.Bucket]decimal.Decimal) (before, after model.Wallet, err error) {
	before, after, _, err = s.mutate(ctx, tx, userID, fixedDeltas(deltas))
	return before, after, err
}

// GetWallet returns the current bucket balances, serving from the Redis
// snapshot when present and lazily materializing the wallet on a first read.
func (s *LedgerService) GetWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	if w, err := s.repo.GetCachedWallet(ctx, userID); err == nil {
		return w, nil
	}
	w, err := s.getOrCreate(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheWallet(ctx, w); err != nil {
		s.log.Warnf("cache wallet %d: %v", userID, err)
	}
	return w, nil
}
