package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
	"istqrar/internal/repository"
)

type LoanRepository interface {
	Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, purpose string, repaymentPeriodMonths int) (models.Loan, error)
	Get(ctx context.Context, id uuid.UUID) (models.Loan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Loan, error)
	ListAll(ctx context.Context) ([]models.Loan, error)
	ActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Loan, error)
	Approve(ctx context.Context, loanID uuid.UUID, interestRate *decimal.Decimal, dueDate *time.Time) (models.Loan, error)
	Reject(ctx context.Context, loanID uuid.UUID) (models.Loan, error)
	Repay(ctx context.Context, loanID, payerID uuid.UUID, amount decimal.Decimal) (models.Loan, models.Repayment, error)
	TotalRepaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
	Repayments(ctx context.Context, loanID uuid.UUID) ([]models.Repayment, error)
}

// LoanService runs the loan lifecycle state machine.
type LoanService struct {
	repo       LoanRepository
	trust      TrustScores
	logger     *slog.Logger
	maxRetries int
}

func NewLoanService(repo LoanRepository, trust TrustScores, logger *slog.Logger) *LoanService {
	return &LoanService{
		repo:       repo,
		trust:      trust,
		logger:     logger,
		maxRetries: 3,
	}
}

// Apply files a PENDING loan. Requires a trust score of at least 60 and
// no other unsettled loan for the user.
func (s *LoanService) Apply(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, purpose string, repaymentPeriodMonths int) (models.Loan, error) {
	if !amount.IsPositive() {
		return models.Loan{}, repository.ErrInvalidAmount
	}
	score, err := s.trust.Get(ctx, userID)
	if err != nil {
		return models.Loan{}, err
	}
	if score.LessThan(minLoanTrustScore) {
		s.logger.Warn("Loan application refused: trust score too low",
			slog.String("user_id", userID.String()),
			slog.Any("score", score),
		)
		return models.Loan{}, repository.ErrTrustScoreTooLow
	}
	l, err := s.repo.Create(ctx, userID, amount, purpose, repaymentPeriodMonths)
	if err != nil {
		return models.Loan{}, err
	}
	s.logger.Info("Loan application created",
		slog.String("loan_id", l.ID.String()),
		slog.String("user_id", userID.String()),
		slog.Any("amount", amount),
	)
	return l, nil
}

// Approve disburses the principal and moves PENDING -> APPROVED.
// Admin only. dueDate overrides the computed 30-days-per-month default.
func (s *LoanService) Approve(ctx context.Context, actor Actor, loanID uuid.UUID, interestRate *decimal.Decimal, dueDate *time.Time) (models.Loan, error) {
	if err := Authorize(actor, ActionApproveLoan, uuid.Nil); err != nil {
		return models.Loan{}, err
	}
	if interestRate != nil && interestRate.IsNegative() {
		return models.Loan{}, repository.ErrInvalidAmount
	}
	var l models.Loan
	err := withRetry(ctx, s.logger, "loan.approve", s.maxRetries, func() error {
		var err error
		l, err = s.repo.Approve(ctx, loanID, interestRate, dueDate)
		return err
	})
	if err != nil {
		return models.Loan{}, err
	}
	s.logger.Info("Loan approved and disbursed",
		slog.String("loan_id", l.ID.String()),
		slog.String("user_id", l.UserID.String()),
		slog.Any("amount", l.Amount),
	)
	return l, nil
}

// Reject moves PENDING -> REJECTED. Admin only, no money movement.
func (s *LoanService) Reject(ctx context.Context, actor Actor, loanID uuid.UUID) (models.Loan, error) {
	if err := Authorize(actor, ActionRejectLoan, uuid.Nil); err != nil {
		return models.Loan{}, err
	}
	return s.repo.Reject(ctx, loanID)
}

// Repay pays part or all of an approved loan from the payer's wallet.
// Owner or admin only. Completing the loan grants the full reward,
// a partial payment the smaller one.
func (s *LoanService) Repay(ctx context.Context, actor Actor, loanID uuid.UUID, amount decimal.Decimal) (models.Loan, error) {
	if !amount.IsPositive() {
		return models.Loan{}, repository.ErrInvalidAmount
	}
	l, err := s.repo.Get(ctx, loanID)
	if err != nil {
		return models.Loan{}, err
	}
	if err := Authorize(actor, ActionRepayLoan, l.UserID); err != nil {
		return models.Loan{}, err
	}
	err = withRetry(ctx, s.logger, "loan.repay", s.maxRetries, func() error {
		var err error
		l, _, err = s.repo.Repay(ctx, loanID, actor.UserID, amount)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			s.logger.Warn("Repayment failed: insufficient funds",
				slog.String("loan_id", loanID.String()),
				slog.String("payer_id", actor.UserID.String()),
				slog.Any("amount", amount),
			)
		}
		return models.Loan{}, err
	}

	reward := trustRepayPartReward
	if l.Status == models.LoanPaid {
		reward = trustRepayFullReward
	}
	if _, err := s.trust.Adjust(ctx, actor.UserID, reward); err != nil {
		s.logger.Warn("Trust score adjustment failed",
			slog.String("op", "loan.repay"),
			slog.String("user_id", actor.UserID.String()),
			slog.Any("delta", reward),
			slog.Any("err", err),
		)
	}
	return l, nil
}

// Active lists the user's unsettled loans.
func (s *LoanService) Active(ctx context.Context, userID uuid.UUID) ([]models.Loan, error) {
	return s.repo.ActiveByUser(ctx, userID)
}

// History lists loans visible to the actor: all of them for admins,
// the actor's own otherwise.
func (s *LoanService) History(ctx context.Context, actor Actor) ([]models.Loan, error) {
	if actor.IsAdmin() {
		return s.repo.ListAll(ctx)
	}
	return s.repo.ListByUser(ctx, actor.UserID)
}

func (s *LoanService) Get(ctx context.Context, actor Actor, loanID uuid.UUID) (models.Loan, []models.Repayment, error) {
	l, err := s.repo.Get(ctx, loanID)
	if err != nil {
		return models.Loan{}, nil, err
	}
	if err := Authorize(actor, ActionViewLoans, l.UserID); err != nil {
		return models.Loan{}, nil, err
	}
	reps, err := s.repo.Repayments(ctx, loanID)
	if err != nil {
		return models.Loan{}, nil, err
	}
	return l, reps, nil
}
