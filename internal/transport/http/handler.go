package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/crxtrade/ledger/internal/config"
	"github.com/crxtrade/ledger/internal/model"
	"github.com/crxtrade/ledger/internal/service"
)

func RegisterHandlers(r *gin.Engine, svcs Services, admin config.AdminConfig) {
	v1 := r.Group("/v1")
	{
		v1.GET("/wallets/:id", walletHandler(svcs.Ledger))
		v1.GET("/wallets/:id/trades", tradesHandler(svcs.Trade))
		v1.GET("/wallets/:id/deposits", userDepositsHandler(svcs.Requests))
		v1.GET("/wallets/:id/withdrawals", userWithdrawalsHandler(svcs.Requests))
		v1.POST("/deposits", createDepositHandler(svcs.Requests))
		v1.POST("/withdrawals", createWithdrawalHandler(svcs.Requests))
		v1.POST("/bonus/redeem", redeemBonusHandler(svcs.Bonus))
		v1.GET("/market", marketHandler(svcs.Trade))
		v1.POST("/trade", tradeHandler(svcs.Trade))
	}
	adm := v1.Group("/admin", AdminOnly(admin.Emails))
	{
		adm.GET("/deposits", pendingDepositsHandler(svcs.Requests))
		adm.POST("/deposits/:id/approve", decideHandler(svcs.Requests.ApproveDeposit))
		adm.POST("/deposits/:id/reject", decideHandler(svcs.Requests.RejectDeposit))
		adm.GET("/withdrawals", pendingWithdrawalsHandler(svcs.Requests))
		adm.POST("/withdrawals/:id/approve", decideHandler(svcs.Requests.ApproveWithdrawal))
		adm.POST("/withdrawals/:id/reject", decideHandler(svcs.Requests.RejectWithdrawal))
		adm.POST("/withdrawals/:id/paid", decideHandler(svcs.Requests.MarkWithdrawalPaid))
		adm.POST("/bonus", generateBonusHandler(svcs.Bonus))
		adm.GET("/bonus", bonusCodesHandler(svcs.Bonus))
		adm.POST("/price", setPriceHandler(svcs.Trade))
	}
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var insufficient *service.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "insufficient funds",
			"bucket":    insufficient.Bucket,
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrAlreadyRedeemed),
		errors.Is(err, service.ErrCodeExpired),
		errors.Is(err, service.ErrDuplicateReference):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func parseAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return decimal.Zero, false
	}
	return amt, true
}

func walletHandler(svc *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		w, err := svc.GetWallet(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"main_balance":     w.MainBalance,
			"referral_balance": w.ReferralBalance,
			"bonus_balance":    w.BonusBalance,
			"crx_balance":      w.CrxBalance,
			"total_balance":    w.Total(),
		})
	}
}

type depositReq struct {
	UserID         uint64 `json:"user_id" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	SenderMobile   string `json:"sender_mobile"`
	TransactionRef string `json:"transaction_ref" binding:"required"`
	ScreenshotRef  string `json:"screenshot_ref"`
}

func createDepositHandler(svc *service.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req depositReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, ok := parseAmount(c, req.Amount)
		if !ok {
			return
		}
		id, err := svc.CreateDeposit(c, req.UserID, amt, req.SenderMobile, req.TransactionRef, req.ScreenshotRef)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"request_id": id})
	}
}

type withdrawalReq struct {
	UserID        uint64 `json:"user_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Method        string `json:"method" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountLabel  string `json:"account_label"`
}

func createWithdrawalHandler(svc *service.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawalReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, ok := parseAmount(c, req.Amount)
		if !ok {
			return
		}
		id, err := svc.CreateWithdrawal(c, req.UserID, amt, req.Method, req.AccountNumber, req.AccountLabel)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"request_id": id})
	}
}

func decideHandler(decide func(ctx context.Context, id uint64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := decide(c, id); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type redeemReq struct {
	UserID uint64 `json:"user_id" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

func redeemBonusHandler(svc *service.BonusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req redeemReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := svc.Redeem(c, req.UserID, req.Code)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"credited_amount": res.CreditedAmount,
			"remaining_uses":  res.RemainingUses,
		})
	}
}

type generateBonusReq struct {
	Code          string `json:"code" binding:"required"`
	TotalAmount   string `json:"total_amount" binding:"required"`
	PerUserAmount string `json:"per_user_amount" binding:"required"`
	MaxUses       int    `json:"max_uses" binding:"required"`
}

func generateBonusHandler(svc *service.BonusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateBonusReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		total, ok := parseAmount(c, req.TotalAmount)
		if !ok {
			return
		}
		perUser, ok := parseAmount(c, req.PerUserAmount)
		if !ok {
			return
		}
		code, err := svc.Generate(c, req.Code, total, perUser, req.MaxUses)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"code": code.Code, "max_uses": code.MaxUses})
	}
}

func bonusCodesHandler(svc *service.BonusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		codes, err := svc.Codes(c, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, codes)
	}
}

func marketHandler(svc *service.TradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("history", "30"))
		view, err := svc.Market(c, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"current_price":         view.Current.Price,
			"expected_rise_percent": view.Current.ExpectedRisePercent,
			"note":                  view.Current.Note,
			"trend":                 view.Trend,
			"history":               view.History,
		})
	}
}

type tradeReq struct {
	UserID    uint64 `json:"user_id" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

func tradeHandler(svc *service.TradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tradeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, ok := parseAmount(c, req.Amount)
		if !ok {
			return
		}
		var res *service.TradeResult
		var err error
		switch model.TradeDirection(req.Direction) {
		case model.TradeBuy:
			res, err = svc.Buy(c, req.UserID, amt)
		case model.TradeSell:
			res, err = svc.Sell(c, req.UserID, amt)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be BUY or SELL"})
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"direction":    res.Direction,
			"unit_price":   res.UnitPrice,
			"usd_amount":   res.UsdAmount,
			"crx_amount":   res.CrxAmount,
			"main_balance": res.MainAfter,
			"crx_balance":  res.CrxAfter,
		})
	}
}

type setPriceReq struct {
	Price               string `json:"price" binding:"required"`
	ExpectedRisePercent string `json:"expected_rise_percent"`
	Note                string `json:"note"`
}

func setPriceHandler(svc *service.TradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setPriceReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		price, ok := parseAmount(c, req.Price)
		if !ok {
			return
		}
		var rise *decimal.Decimal
		if req.ExpectedRisePercent != "" {
			r, ok := parseAmount(c, req.ExpectedRisePercent)
			if !ok {
				return
			}
			rise = &r
		}
		snap, err := svc.SetPrice(c, price, rise, req.Note, c.GetString(adminEmailKey))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"price": snap.Price, "created_at": snap.CreatedAt})
	}
}

func tradesHandler(svc *service.TradeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		txs, err := svc.Trades(c, id, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

func userDepositsHandler(svc *service.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		reqs, err := svc.UserDeposits(c, id, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func userWithdrawalsHandler(svc *service.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		reqs, err := svc.UserWithdrawals(c, id, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func pendingDepositsHandler(svc *service.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		reqs, err := svc.PendingDeposits(c, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}

func pendingWithdrawalsHandler(svc *service.RequestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		reqs, err := svc.PendingWithdrawals(c, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, reqs)
	}
}
