package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/crxtrade/ledger/internal/notify"
	"github.com/crxtrade/ledger/internal/repo"
)

// stageEvent writes a notification event into the outbox. Failures are
// logged and swallowed: delivery is fire-and-forget and must never roll back
// the mutation it describes.
func stageEvent(ctx context.Context, tx *gorm.DB, r repo.RepositoryInterface, log *zap.SugaredLogger, e notify.Event) {
	evt, err := e.Outbox()
	if err != nil {
		log.Warnf("build %s event: %v", e.Type, err)
		return
	}
	if err := r.CreateOutboxEvent(ctx, tx, evt); err != nil {
		log.Warnf("stage %s event: %v", e.Type, err)
	}
}
