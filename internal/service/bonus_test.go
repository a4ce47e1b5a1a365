package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/crxtrade/ledger/internal/model"
)

func TestBonus_CapEnforcement(t *testing.T) {
	env, ctx := newTestEnv(t)

	_, err := env.bonus.Generate(ctx, "launch50", decimal.NewFromInt(150), decimal.NewFromInt(50), 3)
	assert.NoError(t, err)

	// user 1 redeems, then tries again while uses remain
	res, err := env.bonus.Redeem(ctx, 1, "LAUNCH50")
	assert.NoError(t, err)
	assert.Equal(t, "50", res.CreditedAmount.StringFixed(0))
	assert.Equal(t, 2, res.RemainingUses)

	_, err = env.bonus.Redeem(ctx, 1, "LAUNCH50")
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	res, err = env.bonus.Redeem(ctx, 2, "LAUNCH50")
	assert.NoError(t, err)
	assert.Equal(t, 1, res.RemainingUses)

	res, err = env.bonus.Redeem(ctx, 3, "LAUNCH50")
	assert.NoError(t, err)
	assert.Equal(t, 0, res.RemainingUses)

	// a 4th distinct user finds the code expired
	_, err = env.bonus.Redeem(ctx, 4, "LAUNCH50")
	assert.ErrorIs(t, err, ErrCodeExpired)

	var bc model.BonusCode
	assert.NoError(t, env.db.Where("code = ?", "LAUNCH50").First(&bc).Error)
	assert.Equal(t, model.BonusExpired, bc.Status)
	assert.Equal(t, 3, bc.UsedCount)

	// each winner got exactly one bonus-bucket credit
	for _, userID := range []uint64{1, 2, 3} {
		w := env.wallet(t, ctx, userID)
		assert.Equal(t, "50", w.BonusBalance.StringFixed(0))
	}
}

func TestBonus_CaseInsensitiveLookup(t *testing.T) {
	env, ctx := newTestEnv(t)

	bc, err := env.bonus.Generate(ctx, "  welcome10 ", decimal.NewFromInt(100), decimal.NewFromInt(10), 10)
	assert.NoError(t, err)
	assert.Equal(t, "WELCOME10", bc.Code)

	res, err := env.bonus.Redeem(ctx, 1, "Welcome10")
	assert.NoError(t, err)
	assert.Equal(t, "10", res.CreditedAmount.StringFixed(0))
}

func TestBonus_UnknownCode(t *testing.T) {
	env, ctx := newTestEnv(t)

	_, err := env.bonus.Redeem(ctx, 1, "NOPE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
	_, err = env.bonus.Redeem(ctx, 1, "   ")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestBonus_StaleActiveCodeIsRepaired(t *testing.T) {
	env, ctx := newTestEnv(t)

	bc, err := env.bonus.Generate(ctx, "GLITCH", decimal.NewFromInt(20), decimal.NewFromInt(10), 2)
	assert.NoError(t, err)

	// force the inconsistent state: cap reached but still flagged active
	assert.NoError(t, env.db.Model(&model.BonusCode{}).Where("id = ?", bc.ID).
		Update("used_count", 2).Error)

	_, err = env.bonus.Redeem(ctx, 1, "GLITCH")
	assert.ErrorIs(t, err, ErrCodeExpired)

	var got model.BonusCode
	assert.NoError(t, env.db.First(&got, bc.ID).Error)
	assert.Equal(t, model.BonusExpired, got.Status)
}

func TestBonus_GenerateValidation(t *testing.T) {
	env, ctx := newTestEnv(t)

	_, err := env.bonus.Generate(ctx, "", decimal.NewFromInt(10), decimal.NewFromInt(5), 2)
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = env.bonus.Generate(ctx, "X", decimal.Zero, decimal.NewFromInt(5), 2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.bonus.Generate(ctx, "X", decimal.NewFromInt(10), decimal.NewFromInt(5), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
