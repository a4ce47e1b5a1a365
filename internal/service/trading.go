package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/model"
	"github.com/crxtrade/ledger/internal/notify"
	"github.com/crxtrade/ledger/internal/repo"
)

// USD amounts carry 2 fractional digits, CRX amounts 6. Both the input and
// the computed counter-amount are rounded before the balance check so the
// check and the mutation use identical figures.
func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
func round6(d decimal.Decimal) decimal.Decimal { return d.Round(6) }

// TradeService converts between the main (USD) and crx buckets at the
// current oracle price. Both legs of a conversion go through one conditional
// wallet write, and the journal row is built from the applied deltas rather
// than a re-read.
type TradeService struct {
	repo         repo.RepositoryInterface
	ledger       *LedgerService
	defaultPrice decimal.Decimal
	log          *zap.SugaredLogger
}

func NewTradeService(r repo.RepositoryInterface, ledger *LedgerService, defaultPrice decimal.Decimal, logger *zap.SugaredLogger) *TradeService {
	return &TradeService{repo: r, ledger: ledger, defaultPrice: defaultPrice, log: logger}
}

// TradeResult reports an executed conversion.
type TradeResult struct {
	Direction model.TradeDirection
	UnitPrice decimal.Decimal
	UsdAmount decimal.Decimal
	CrxAmount decimal.Decimal
	MainAfter decimal.Decimal
	CrxAfter  decimal.Decimal
}

// CurrentPrice returns the latest snapshot, materializing the configured
// seed price on the very first read.
func (s *TradeService) CurrentPrice(ctx context.Context) (*model.PriceSnapshot, error) {
	var snap model.PriceSnapshot
	err := s.repo.DB(ctx).Order("created_at desc, id desc").First(&snap).Error
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	seed := model.PriceSnapshot{Price: s.defaultPrice, Note: "seed price"}
	if err := s.repo.DB(ctx).Create(&seed).Error; err != nil {
		return nil, err
	}
	return &seed, nil
}

// SetPrice appends a snapshot; history is never rewritten.
func (s *TradeService) SetPrice(ctx context.Context, price decimal.Decimal, expectedRisePercent *decimal.Decimal, note, adminEmail string) (*model.PriceSnapshot, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	snap := model.PriceSnapshot{
		Price:               price,
		ExpectedRisePercent: expectedRisePercent,
		Note:                note,
		CreatedBy:           adminEmail,
	}
	if err := s.repo.DB(ctx).Create(&snap).Error; err != nil {
		return nil, err
	}
	return &snap, nil
}

// MarketView is what the trading UI renders.
type MarketView struct {
	Current *model.PriceSnapshot
	Trend   string // up, down, flat
	History []model.PriceSnapshot
}

// Market returns the current price, the trend derived from the two most
// recent snapshots, and recent history (newest first).
func (s *TradeService) Market(ctx context.Context, historyLimit int) (*MarketView, error) {
	current, err := s.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	var hist []model.PriceSnapshot
	if err := s.repo.DB(ctx).Order("created_at desc, id desc").Limit(historyLimit).Find(&hist).Error; err != nil {
		return nil, err
	}
	trend := "flat"
	if len(hist) >= 2 {
		switch {
		case hist[0].Price.GreaterThan(hist[1].Price):
			trend = "up"
		case hist[0].Price.LessThan(hist[1].Price):
			trend = "down"
		}
	}
	return &MarketView{Current: current, Trend: trend, History: hist}, nil
}

// Buy converts USD from main into crx at the current price.
func (s *TradeService) Buy(ctx context.Context, userID uint64, usdAmount decimal.Decimal) (*TradeResult, error) {
	usd := round2(usdAmount)
	if usd.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	price, err := s.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	crx := round6(usd.Div(price.Price))
	return s.execute(ctx, userID, model.TradeBuy, price.Price, usd, crx, map[model.Bucket]decimal.Decimal{
		model.BucketMain: usd.Neg(),
		model.BucketCrx:  crx,
	})
}

// Sell converts crx back into USD on main at the current price.
func (s *TradeService) Sell(ctx context.Context, userID uint64, crxAmount decimal.Decimal) (*TradeResult, error) {
	crx := round6(crxAmount)
	if crx.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	price, err := s.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	usd := round2(crx.Mul(price.Price))
	return s.execute(ctx, userID, model.TradeSell, price.Price, usd, crx, map[model.Bucket]decimal.Decimal{
		model.BucketCrx:  crx.Neg(),
		model.BucketMain: usd,
	})
}

func (s *TradeService) execute(ctx context.Context, userID uint64, dir model.TradeDirection, price, usd, crx decimal.Decimal, deltas map[model.Bucket]decimal.Decimal) (*TradeResult, error) {
	var result *TradeResult
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		before, after, err := s.ledger.ApplyDeltaTx(ctx, tx, userID, deltas)
		if err != nil {
			return err
		}
		journal := &model.AssetTransaction{
			UserID:     userID,
			Direction:  dir,
			UnitPrice:  price,
			CrxAmount:  crx,
			UsdAmount:  usd,
			MainBefore: before.MainBalance,
			MainAfter:  after.MainBalance,
			CrxBefore:  before.CrxBalance,
			CrxAfter:   after.CrxBalance,
		}
		if err := tx.Create(journal).Error; err != nil {
			return err
		}
		stageEvent(ctx, tx, s.repo, s.log, notify.Event{
			UserID: userID, Type: "trade_executed",
			Message: string(dir) + " " + crx.StringFixed(6) + " CRX @ " + price.String(),
			Amount:  usd,
			Metadata: map[string]interface{}{
				"direction": dir,
				"crx":       crx,
				"price":     price,
			},
		})
		result = &TradeResult{
			Direction: dir,
			UnitPrice: price,
			UsdAmount: usd,
			CrxAmount: crx,
			MainAfter: after.MainBalance,
			CrxAfter:  after.CrxBalance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Trades lists a user's journal entries, newest first.
func (s *TradeService) Trades(ctx context.Context, userID uint64, limit int) ([]model.AssetTransaction, error) {
	var txs []model.AssetTransaction
	err := s.repo.DB(ctx).Where("user_id = ?", userID).Order("created_at desc, id desc").Limit(limit).Find(&txs).Error
	return txs, err
}
