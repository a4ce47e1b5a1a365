package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crxtrade/ledger/internal/config"
	"github.com/crxtrade/ledger/internal/service"
)

// Services bundles the ledger components the transport exposes.
type Services struct {
	Ledger   *service.LedgerService
	Requests *service.RequestService
	Bonus    *service.BonusService
	Trade    *service.TradeService
}

func NewRouter(svcs Services, rl config.RateLimitConfig, admin config.AdminConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svcs, admin)
	return r
}
