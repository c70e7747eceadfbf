package models

import (
	"github.com/shopspring/decimal"
)

type WalletOpRequest struct {
	OperationType string          `json:"operationType" binding:"required,oneof=DEPOSIT WITHDRAW"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
}

type CreateGameyaRequest struct {
	Name               string          `json:"name" binding:"required"`
	Description        string          `json:"description"`
	ContributionAmount decimal.Decimal `json:"contributionAmount" binding:"required"`
	DurationRounds     int             `json:"durationRounds" binding:"required,min=1"`
	MaxMembers         *int            `json:"maxMembers"`
}

type ContributeRequest struct {
	Round  int              `json:"round"`
	Amount *decimal.Decimal `json:"amount"`
}

type ApplyLoanRequest struct {
	Amount                decimal.Decimal `json:"amount" binding:"required"`
	Purpose               string          `json:"purpose" binding:"required"`
	RepaymentPeriodMonths int             `json:"repaymentPeriodMonths" binding:"required,oneof=3 6 12"`
}

type ApproveLoanRequest struct {
	InterestRate *decimal.Decimal `json:"interestRate"`
	DueDate      *string          `json:"dueDate"` // YYYY-MM-DD, overrides the computed due date
}

type RepayLoanRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}
