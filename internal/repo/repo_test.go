package repo

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/logger"
	"github.com/crxtrade/ledger/internal/model"
)

func newTestRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.Wallet{},
		&model.DepositRequest{},
		&model.BonusCode{},
		&model.OutboxEvent{},
	))
	return NewRepository(db, nil, &kafka.Writer{}, must(logger.NewLogger())), db
}

func TestUpdateWalletBuckets_VersionGuard(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	db.Create(&model.Wallet{UserID: 1, MainBalance: decimal.NewFromInt(100)})

	w, err := repo.GetWallet(ctx, db, 1)
	assert.NoError(t, err)

	// first write against the read version wins
	w.MainBalance = w.MainBalance.Add(decimal.NewFromInt(10))
	assert.NoError(t, repo.UpdateWalletBuckets(ctx, db, w, w.Version))

	// a second write with the now-stale version must lose
	w.MainBalance = w.MainBalance.Add(decimal.NewFromInt(10))
	assert.ErrorIs(t, repo.UpdateWalletBuckets(ctx, db, w, 0), ErrVersionConflict)

	var final model.Wallet
	assert.NoError(t, db.First(&final, "user_id = ?", 1).Error)
	assert.Equal(t, "110", final.MainBalance.StringFixed(0))
	assert.EqualValues(t, 1, final.Version)
}

func TestFlipDepositStatus_OnlyFromPending(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	req := model.DepositRequest{UserID: 1, Amount: decimal.NewFromInt(10), TransactionRef: "T1", Status: model.StatusPending}
	assert.NoError(t, db.Create(&req).Error)

	flipped, err := repo.FlipDepositStatus(ctx, db, req.ID, model.StatusApproved)
	assert.NoError(t, err)
	assert.True(t, flipped)

	// the gate holds: no second flip from any direction
	flipped, err = repo.FlipDepositStatus(ctx, db, req.ID, model.StatusRejected)
	assert.NoError(t, err)
	assert.False(t, flipped)
}

func TestConsumeBonusUse_CountGuard(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	code := model.BonusCode{Code: "C1", TotalAmount: decimal.NewFromInt(10), PerUserAmount: decimal.NewFromInt(5), MaxUses: 2, Status: model.BonusActive}
	assert.NoError(t, db.Create(&code).Error)

	ok, err := repo.ConsumeBonusUse(ctx, db, code.ID, 0, false)
	assert.NoError(t, err)
	assert.True(t, ok)

	// a stale count loses
	ok, err = repo.ConsumeBonusUse(ctx, db, code.ID, 0, false)
	assert.NoError(t, err)
	assert.False(t, ok)

	// last use expires the code
	ok, err = repo.ConsumeBonusUse(ctx, db, code.ID, 1, true)
	assert.NoError(t, err)
	assert.True(t, ok)

	var got model.BonusCode
	assert.NoError(t, db.First(&got, code.ID).Error)
	assert.Equal(t, 2, got.UsedCount)
	assert.Equal(t, model.BonusExpired, got.Status)

	// expired codes reject further bumps
	ok, err = repo.ConsumeBonusUse(ctx, db, code.ID, 2, false)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestOutboxLifecycle(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	evt := &model.OutboxEvent{UserID: 1, EventType: "deposit_approved", Payload: `{"userId":1}`}
	assert.NoError(t, repo.CreateOutboxEvent(ctx, repo.DB(ctx), evt))

	pending, err := repo.PollOutbox(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, pending, 1)

	assert.NoError(t, repo.MarkOutboxProcessed(ctx, pending[0].ID))
	pending, err = repo.PollOutbox(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, pending)
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
