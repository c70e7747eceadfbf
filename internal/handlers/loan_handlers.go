package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
	"istqrar/internal/service"
)

type LoanService interface {
	Apply(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, purpose string, repaymentPeriodMonths int) (models.Loan, error)
	Approve(ctx context.Context, actor service.Actor, loanID uuid.UUID, interestRate *decimal.Decimal, dueDate *time.Time) (models.Loan, error)
	Reject(ctx context.Context, actor service.Actor, loanID uuid.UUID) (models.Loan, error)
	Repay(ctx context.Context, actor service.Actor, loanID uuid.UUID, amount decimal.Decimal) (models.Loan, error)
	Active(ctx context.Context, userID uuid.UUID) ([]models.Loan, error)
	History(ctx context.Context, actor service.Actor) ([]models.Loan, error)
	Get(ctx context.Context, actor service.Actor, loanID uuid.UUID) (models.Loan, []models.Repayment, error)
}

type LoanHTTPHandler struct {
	service LoanService
}

func NewLoanHTTPHandler(service LoanService) *LoanHTTPHandler {
	return &LoanHTTPHandler{service: service}
}

func (h *LoanHTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/loans", h.HandleApply)
	r.GET("/loans", h.HandleHistory)
	r.GET("/loans/active", h.HandleActive)
	r.GET("/loans/:loan_id", h.HandleGet)
	r.POST("/loans/:loan_id/approve", h.HandleApprove)
	r.POST("/loans/:loan_id/reject", h.HandleReject)
	r.POST("/loans/:loan_id/repay", h.HandleRepay)
}

func loanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("loan_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan_id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *LoanHTTPHandler) HandleApply(c *gin.Context) {
	var req models.ApplyLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	l, err := h.service.Apply(c.Request.Context(), actor(c).UserID, req.Amount, req.Purpose, req.RepaymentPeriodMonths)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *LoanHTTPHandler) HandleApprove(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}
	var req models.ApproveLoanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
	}
	var due *time.Time
	if req.DueDate != nil {
		d, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate, want YYYY-MM-DD"})
			return
		}
		due = &d
	}
	l, err := h.service.Approve(c.Request.Context(), actor(c), id, req.InterestRate, due)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *LoanHTTPHandler) HandleReject(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}
	l, err := h.service.Reject(c.Request.Context(), actor(c), id)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *LoanHTTPHandler) HandleRepay(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}
	var req models.RepayLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	l, err := h.service.Repay(c.Request.Context(), actor(c), id, req.Amount)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Repayment successful.", "loan": l})
}

func (h *LoanHTTPHandler) HandleActive(c *gin.Context) {
	ls, err := h.service.Active(c.Request.Context(), actor(c).UserID)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": ls})
}

func (h *LoanHTTPHandler) HandleHistory(c *gin.Context) {
	ls, err := h.service.History(c.Request.Context(), actor(c))
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": ls})
}

func (h *LoanHTTPHandler) HandleGet(c *gin.Context) {
	id, ok := loanID(c)
	if !ok {
		return
	}
	l, reps, err := h.service.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		abortWithErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": l, "repayments": reps, "totalDue": l.TotalDue().String()})
}
