package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types recorded in the ledger.
const (
	TxDeposit      = "DEPOSIT"
	TxWithdrawal   = "WITHDRAWAL"
	TxContribution = "CONTRIBUTION"
	TxPayout       = "PAYOUT"
	TxLoanDisburse = "LOAN_DISBURSE"
	TxLoanRepay    = "LOAN_REPAY"
)

// Gameya statuses.
const (
	GameyaActive    = "ACTIVE"
	GameyaCompleted = "COMPLETED"
	GameyaInactive  = "INACTIVE"
)

// Loan statuses.
const (
	LoanPending  = "PENDING"
	LoanApproved = "APPROVED"
	LoanRejected = "REJECTED"
	LoanPaid     = "PAID"
)

type Wallet struct {
	ID          uuid.UUID       `db:"id" json:"walletId"`
	UserID      uuid.UUID       `db:"user_id" json:"userId"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	LastUpdated time.Time       `db:"last_updated" json:"lastUpdated"`
}

type Transaction struct {
	ID          int64           `db:"id" json:"id"`
	WalletID    uuid.UUID       `db:"wallet_id" json:"walletId"`
	Type        string          `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	ReferenceID string          `db:"reference_id" json:"referenceId"`
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

type Gameya struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	Description        string          `db:"description" json:"description"`
	CreatorID          uuid.UUID       `db:"creator_id" json:"creatorId"`
	ContributionAmount decimal.Decimal `db:"contribution_amount" json:"contributionAmount"`
	TotalMembers       int             `db:"total_members" json:"totalMembers"`
	MaxMembers         *int            `db:"max_members" json:"maxMembers,omitempty"`
	DurationRounds     int             `db:"duration_rounds" json:"durationRounds"`
	CurrentRound       int             `db:"current_round" json:"currentRound"`
	Status             string          `db:"status" json:"status"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
}

type Membership struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	GameyaID    uuid.UUID `db:"gameya_id" json:"gameyaId"`
	PayoutOrder int       `db:"payout_order" json:"payoutOrder"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	JoinedAt    time.Time `db:"joined_at" json:"joinedAt"`
}

type Contribution struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	MembershipID uuid.UUID       `db:"membership_id" json:"membershipId"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Round        int             `db:"round" json:"round"`
	Confirmed    bool            `db:"confirmed" json:"confirmed"`
	PaidAt       time.Time       `db:"paid_at" json:"paidAt"`
}

type Loan struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	UserID                uuid.UUID       `db:"user_id" json:"userId"`
	Amount                decimal.Decimal `db:"amount" json:"amount"`
	Purpose               string          `db:"purpose" json:"purpose"`
	RepaymentPeriodMonths int             `db:"repayment_period_months" json:"repaymentPeriodMonths"`
	Status                string          `db:"status" json:"status"`
	InterestRate          decimal.Decimal `db:"interest_rate" json:"interestRate"`
	ApprovedAt            *time.Time      `db:"approved_at" json:"approvedAt,omitempty"`
	DueDate               *time.Time      `db:"due_date" json:"dueDate,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"createdAt"`
}

// TotalDue is the principal plus simple interest.
func (l Loan) TotalDue() decimal.Decimal {
	return l.Amount.Add(l.Amount.Mul(l.InterestRate).Div(decimal.NewFromInt(100)))
}

type Repayment struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	LoanID      uuid.UUID       `db:"loan_id" json:"loanId"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	IsPaid      bool            `db:"is_paid" json:"isPaid"`
	PaymentDate time.Time       `db:"payment_date" json:"paymentDate"`
}

// PayoutResult reports a completed payout round.
type PayoutResult struct {
	Round         int             `json:"round"`
	Amount        decimal.Decimal `json:"amount"`
	BeneficiaryID uuid.UUID       `json:"beneficiaryId"`
}

type TrustScore struct {
	UserID uuid.UUID       `db:"user_id" json:"userId"`
	Score  decimal.Decimal `db:"score" json:"score"`
}
