package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/logger"
	"github.com/crxtrade/ledger/internal/model"
	"github.com/crxtrade/ledger/internal/repo"
)

type testEnv struct {
	db       *gorm.DB
	repo     *repo.Repository
	ledger   *LedgerService
	requests *RequestService
	bonus    *BonusService
	trade    *TradeService
}

func newTestEnv(t *testing.T) (*testEnv, context.Context) {
	t.Helper()

	// One shared in-memory DB per test so concurrent connections see the
	// same data.
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.Wallet{},
		&model.DepositRequest{},
		&model.WithdrawalRequest{},
		&model.BonusCode{},
		&model.BonusRedemption{},
		&model.PriceSnapshot{},
		&model.AssetTransaction{},
		&model.OutboxEvent{},
	))

	// The redis mock gets no expectations: every cache call errors, which
	// the services treat as a miss, so reads always hit the DB.
	rdb, _ := redismock.NewClientMock()
	log, err := logger.NewLogger()
	assert.NoError(t, err)

	r := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	ledger := NewLedgerService(r, log)
	env := &testEnv{
		db:       db,
		repo:     r,
		ledger:   ledger,
		requests: NewRequestService(r, ledger, decimal.NewFromInt(10), log),
		bonus:    NewBonusService(r, ledger, log),
		trade:    NewTradeService(r, ledger, decimal.RequireFromString("0.40"), log),
	}
	return env, context.Background()
}

// seed credits buckets directly through the mutation primitive.
func (e *testEnv) seed(t *testing.T, ctx context.Context, userID uint64, deltas map[model.Bucket]decimal.Decimal) {
	t.Helper()
	_, err := e.ledger.ApplyDelta(ctx, userID, deltas)
	assert.NoError(t, err)
}

func (e *testEnv) wallet(t *testing.T, ctx context.Context, userID uint64) *model.Wallet {
	t.Helper()
	var w model.Wallet
	assert.NoError(t, e.db.Where("user_id = ?", userID).First(&w).Error)
	return &w
}
