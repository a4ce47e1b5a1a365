package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/crxtrade/ledger/internal/model"
)

func TestApplyDelta_LazyWalletCreation(t *testing.T) {
	env, ctx := newTestEnv(t)

	// no wallet row exists yet; the credit materializes one
	after, err := env.ledger.ApplyDelta(ctx, 1, map[model.Bucket]decimal.Decimal{
		model.BucketMain: decimal.NewFromInt(50),
	})
	assert.NoError(t, err)
	assert.Equal(t, "50", after.MainBalance.StringFixed(0))

	w, err := env.ledger.GetWallet(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "50", w.MainBalance.StringFixed(0))
	assert.Equal(t, "50", w.Total().StringFixed(0))

	// a bare read also materializes a wallet
	w2, err := env.ledger.GetWallet(ctx, 2)
	assert.NoError(t, err)
	assert.True(t, w2.MainBalance.IsZero())
	assert.True(t, w2.CrxBalance.IsZero())
}

func TestApplyDelta_RejectsOverdraft(t *testing.T) {
	env, ctx := newTestEnv(t)
	env.seed(t, ctx, 1, map[model.Bucket]decimal.Decimal{model.BucketMain: decimal.NewFromInt(30)})

	_, err := env.ledger.ApplyDelta(ctx, 1, map[model.Bucket]decimal.Decimal{
		model.BucketMain: decimal.NewFromInt(-31),
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var ife *InsufficientFundsError
	assert.ErrorAs(t, err, &ife)
	assert.Equal(t, model.BucketMain, ife.Bucket)
	assert.Equal(t, "31", ife.Required.StringFixed(0))
	assert.Equal(t, "30", ife.Available.StringFixed(0))

	w := env.wallet(t, ctx, 1)
	assert.Equal(t, "30", w.MainBalance.StringFixed(0))
}

func TestApplyDelta_NoPartialEffect(t *testing.T) {
	env, ctx := newTestEnv(t)
	env.seed(t, ctx, 1, map[model.Bucket]decimal.Decimal{model.BucketMain: decimal.NewFromInt(10)})

	// one credit, one overdraft debit: the whole call must fail
	_, err := env.ledger.ApplyDelta(ctx, 1, map[model.Bucket]decimal.Decimal{
		model.BucketCrx:  decimal.NewFromInt(25),
		model.BucketMain: decimal.NewFromInt(-20),
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	w := env.wallet(t, ctx, 1)
	assert.Equal(t, "10", w.MainBalance.StringFixed(0))
	assert.True(t, w.CrxBalance.IsZero())
}

func TestApplyDelta_ConcurrentDebits(t *testing.T) {
	env, ctx := newTestEnv(t)
	env.seed(t, ctx, 1, map[model.Bucket]decimal.Decimal{model.BucketMain: decimal.NewFromInt(10)})

	debit := map[model.Bucket]decimal.Decimal{model.BucketMain: decimal.NewFromInt(-10)}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.ledger.ApplyDelta(ctx, 1, debit)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent debit may win")

	w := env.wallet(t, ctx, 1)
	assert.True(t, w.MainBalance.IsZero())
	assert.False(t, w.MainBalance.IsNegative())
}

func TestApplyDelta_MultiBucket(t *testing.T) {
	env, ctx := newTestEnv(t)
	env.seed(t, ctx, 1, map[model.Bucket]decimal.Decimal{
		model.BucketMain:     decimal.NewFromInt(20),
		model.BucketReferral: decimal.NewFromInt(5),
	})

	after, err := env.ledger.ApplyDelta(ctx, 1, map[model.Bucket]decimal.Decimal{
		model.BucketMain:     decimal.NewFromInt(-20),
		model.BucketReferral: decimal.NewFromInt(-5),
		model.BucketBonus:    decimal.NewFromInt(3),
	})
	assert.NoError(t, err)
	assert.True(t, after.MainBalance.IsZero())
	assert.True(t, after.ReferralBalance.IsZero())
	assert.Equal(t, "3", after.BonusBalance.StringFixed(0))
}

func TestApplyDelta_UnexpectedErrorPassesThrough(t *testing.T) {
	env, ctx := newTestEnv(t)

	// closing the underlying pool makes the storage fail; the caller gets a
	// generic error, not a taxonomy one
	sqlDB, err := env.db.DB()
	assert.NoError(t, err)
	assert.NoError(t, sqlDB.Close())

	_, err = env.ledger.ApplyDelta(ctx, 1, map[model.Bucket]decimal.Decimal{
		model.BucketMain: decimal.NewFromInt(1),
	})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientFunds))
}
