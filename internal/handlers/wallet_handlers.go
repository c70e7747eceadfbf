package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
)

//go:generate mockgen -source=wallet_handlers.go -destination=../../test/mock_wallet_service.go -package=test WalletService

type WalletService interface {
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	Me(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

type WalletHTTPHandler struct {
	service WalletService
}

func NewWalletHTTPHandler(service WalletService) *WalletHTTPHandler {
	return &WalletHTTPHandler{service: service}
}

func (h *WalletHTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/wallet", h.HandleWalletOperation)
	r.GET("/wallet/me", h.HandleMe)
	r.GET("/wallet/transactions", h.HandleHistory)
}

func (h *WalletHTTPHandler) HandleWalletOperation(c *gin.Context) {
	var req models.WalletOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be > 0"})
		return
	}

	a := actor(c)
	switch req.OperationType {
	case "DEPOSIT":
		balance, err := h.service.Deposit(c.Request.Context(), a.UserID, req.Amount)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance.String()})
	case "WITHDRAW":
		balance, err := h.service.Withdraw(c.Request.Context(), a.UserID, req.Amount)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance.String()})
	}
}

func (h *WalletHTTPHandler) HandleMe(c *gin.Context) {
	w, err := h.service.Me(c.Request.Context(), actor(c).UserID)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *WalletHTTPHandler) HandleHistory(c *gin.Context) {
	txs, err := h.service.History(c.Request.Context(), actor(c).UserID)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
