package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crxtrade/ledger/internal/model"
)

// ErrVersionConflict is returned when a version-guarded wallet write loses a
// race; callers re-read and retry.
var ErrVersionConflict = errors.New("wallet version conflict")

// RepositoryInterface restricts Repo methods (mockable in unit tests).
// Only guarded writes live here; plain list-style reads go through DB(ctx)
// directly.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	GetWallet(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	UpdateWalletBuckets(ctx context.Context, tx *gorm.DB, w *model.Wallet, oldVersion uint64) error
	FlipDepositStatus(ctx context.Context, tx *gorm.DB, id uint64, to model.RequestStatus) (bool, error)
	FlipWithdrawalStatus(ctx context.Context, tx *gorm.DB, id uint64, from, to model.RequestStatus) (bool, error)
	ConsumeBonusUse(ctx context.Context, tx *gorm.DB, codeID uint64, oldUsed int, expire bool) (bool, error)
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	CacheWallet(ctx context.Context, w *model.Wallet) error
	GetCachedWallet(ctx context.Context, userID uint64) (*model.Wallet, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// GetWallet fetches the wallet row; gorm.ErrRecordNotFound when absent.
func (r *Repository) GetWallet(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWallet inserts a zero-balance wallet. A concurrent creator winning
// the race is fine: the insert is a no-op and the caller re-reads.
func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(w).Error
}

// UpdateWalletBuckets writes all four buckets conditioned on the version the
// caller read. RowsAffected == 0 means someone else got there first.
func (r *Repository) UpdateWalletBuckets(ctx context.Context, tx *gorm.DB, w *model.Wallet, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND version = ?", w.UserID, oldVersion).
		Updates(map[string]interface{}{
			"main_balance":     w.MainBalance,
			"referral_balance": w.ReferralBalance,
			"bonus_balance":    w.BonusBalance,
			"crx_balance":      w.CrxBalance,
			"version":          oldVersion + 1,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// FlipDepositStatus moves a deposit out of pending. The status predicate is
// the idempotency gate: only one approval or rejection can ever win.
func (r *Repository) FlipDepositStatus(ctx context.Context, tx *gorm.DB, id uint64, to model.RequestStatus) (bool, error) {
	now := time.Now()
	res := tx.WithContext(ctx).
		Model(&model.DepositRequest{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{"status": to, "decided_at": &now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FlipWithdrawalStatus moves a withdrawal from one state to another under
// the same conditional-update gate (pending→approved/rejected,
// approved→paid).
func (r *Repository) FlipWithdrawalStatus(ctx context.Context, tx *gorm.DB, id uint64, from, to model.RequestStatus) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{"status": to}
	if to == model.StatusPaid {
		updates["paid_at"] = &now
	} else {
		updates["decided_at"] = &now
	}
	res := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConsumeBonusUse bumps used_count conditioned on the count the caller read,
// flipping status to expired when the bump hits the cap. RowsAffected == 0
// means a concurrent redemption won; the caller re-reads and re-checks.
func (r *Repository) ConsumeBonusUse(ctx context.Context, tx *gorm.DB, codeID uint64, oldUsed int, expire bool) (bool, error) {
	updates := map[string]interface{}{"used_count": oldUsed + 1}
	if expire {
		updates["status"] = model.BonusExpired
	}
	res := tx.WithContext(ctx).
		Model(&model.BonusCode{}).
		Where("id = ? AND used_count = ? AND status = ?", codeID, oldUsed, model.BonusActive).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.UserID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

type cachedWallet struct {
	Main     string `json:"main"`
	Referral string `json:"referral"`
	Bonus    string `json:"bonus"`
	Crx      string `json:"crx"`
}

func walletKey(userID uint64) string { return fmt.Sprintf("wallet:%d", userID) }

// CacheWallet writes the bucket snapshot to Redis.
func (r *Repository) CacheWallet(ctx context.Context, w *model.Wallet) error {
	buf, err := json.Marshal(cachedWallet{
		Main:     w.MainBalance.String(),
		Referral: w.ReferralBalance.String(),
		Bonus:    w.BonusBalance.String(),
		Crx:      w.CrxBalance.String(),
	})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, walletKey(w.UserID), buf, 5*time.Minute).Err()
}

// GetCachedWallet reads the Redis snapshot; redis.Nil on a miss.
func (r *Repository) GetCachedWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	raw, err := r.rdb.Get(ctx, walletKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var c cachedWallet
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	w := model.Wallet{UserID: userID}
	if w.MainBalance, err = decimalFrom(c.Main); err != nil {
		return nil, err
	}
	if w.ReferralBalance, err = decimalFrom(c.Referral); err != nil {
		return nil, err
	}
	if w.BonusBalance, err = decimalFrom(c.Bonus); err != nil {
		return nil, err
	}
	if w.CrxBalance, err = decimalFrom(c.Crx); err != nil {
		return nil, err
	}
	return &w, nil
}
