package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
)

type LoanPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLoanPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *LoanPGRepository {
	return &LoanPGRepository{
		pool:   pool,
		logger: logger,
	}
}

const loanColumns = "id, user_id, amount, purpose, repayment_period_months, status, interest_rate, approved_at, due_date, created_at"

// Create inserts a PENDING loan. The per-user gate closes the race on the
// one-unsettled-loan rule: a second concurrent application sees the first
// row once it acquires the lock.
func (r *LoanPGRepository) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, purpose string, repaymentPeriodMonths int) (models.Loan, error) {
	var l models.Loan
	err := r.inTx(ctx, userID, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM loans WHERE user_id = $1 AND status IN ('PENDING', 'APPROVED'))",
			userID,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrActiveLoanExists
		}

		l = models.Loan{
			ID:                    uuid.New(),
			UserID:                userID,
			Amount:                amount,
			Purpose:               purpose,
			RepaymentPeriodMonths: repaymentPeriodMonths,
			Status:                models.LoanPending,
			InterestRate:          decimal.Zero,
		}
		return tx.QueryRow(ctx, `
			INSERT INTO loans (id, user_id, amount, purpose, repayment_period_months, status)
			VALUES ($1, $2, $3, $4, $5, 'PENDING')
			RETURNING created_at`,
			l.ID, l.UserID, l.Amount, l.Purpose, l.RepaymentPeriodMonths,
		).Scan(&l.CreatedAt)
	})
	if err != nil {
		return models.Loan{}, err
	}
	return l, nil
}

func (r *LoanPGRepository) Get(ctx context.Context, id uuid.UUID) (models.Loan, error) {
	var l models.Loan
	err := scanLoan(r.pool.QueryRow(ctx, "SELECT "+loanColumns+" FROM loans WHERE id = $1", id), &l)
	if err == pgx.ErrNoRows {
		return models.Loan{}, ErrLoanNotFound
	}
	if err != nil {
		return models.Loan{}, err
	}
	return l, nil
}

func (r *LoanPGRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Loan, error) {
	return r.listLoans(ctx, "SELECT "+loanColumns+" FROM loans WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

func (r *LoanPGRepository) ListAll(ctx context.Context) ([]models.Loan, error) {
	return r.listLoans(ctx, "SELECT "+loanColumns+" FROM loans ORDER BY created_at DESC")
}

// ActiveByUser returns the user's unsettled (PENDING or APPROVED) loans.
func (r *LoanPGRepository) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Loan, error) {
	return r.listLoans(ctx,
		"SELECT "+loanColumns+" FROM loans WHERE user_id = $1 AND status IN ('PENDING', 'APPROVED') ORDER BY created_at DESC",
		userID)
}

// Approve disburses the principal to the borrower's wallet and flips the
// loan to APPROVED as one unit.
func (r *LoanPGRepository) Approve(ctx context.Context, loanID uuid.UUID, interestRate *decimal.Decimal, dueDate *time.Time) (models.Loan, error) {
	var l models.Loan
	err := r.inTx(ctx, loanID, func(tx pgx.Tx) error {
		var err error
		l, err = lockLoanTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.Status != models.LoanPending {
			return ErrAlreadyProcessed
		}

		if interestRate != nil {
			l.InterestRate = *interestRate
		}
		due := time.Now().AddDate(0, 0, 30*l.RepaymentPeriodMonths)
		if dueDate != nil {
			due = *dueDate
		}

		ref := fmt.Sprintf("LOAN-%s", l.ID)
		desc := fmt.Sprintf("Loan disbursement for Loan %s", l.ID)
		if _, _, err := creditWalletTx(ctx, tx, l.UserID, l.Amount, models.TxLoanDisburse, ref, desc); err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			UPDATE loans SET status = 'APPROVED', interest_rate = $2, due_date = $3, approved_at = NOW()
			WHERE id = $1
			RETURNING status, interest_rate, approved_at, due_date`,
			l.ID, l.InterestRate, due,
		).Scan(&l.Status, &l.InterestRate, &l.ApprovedAt, &l.DueDate)
	})
	if err != nil {
		return models.Loan{}, err
	}
	return l, nil
}

func (r *LoanPGRepository) Reject(ctx context.Context, loanID uuid.UUID) (models.Loan, error) {
	var l models.Loan
	err := r.inTx(ctx, loanID, func(tx pgx.Tx) error {
		var err error
		l, err = lockLoanTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.Status != models.LoanPending {
			return ErrAlreadyProcessed
		}
		l.Status = models.LoanRejected
		_, err = tx.Exec(ctx, "UPDATE loans SET status = 'REJECTED' WHERE id = $1", l.ID)
		return err
	})
	if err != nil {
		return models.Loan{}, err
	}
	return l, nil
}

// Repay debits the payer's wallet, records the repayment, and flips the
// loan to PAID when the total due is covered, all as one unit. The loan
// gate serializes concurrent repayments so the over-repayment check sees
// every committed repayment.
func (r *LoanPGRepository) Repay(ctx context.Context, loanID, payerID uuid.UUID, amount decimal.Decimal) (models.Loan, models.Repayment, error) {
	var (
		l   models.Loan
		rep models.Repayment
	)
	err := r.inTx(ctx, loanID, func(tx pgx.Tx) error {
		var err error
		l, err = lockLoanTx(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.Status != models.LoanApproved {
			return ErrNotRepayable
		}

		var repaid decimal.Decimal
		err = tx.QueryRow(ctx,
			"SELECT COALESCE(SUM(amount), 0) FROM repayments WHERE loan_id = $1 AND is_paid",
			l.ID,
		).Scan(&repaid)
		if err != nil {
			return err
		}

		totalDue := l.TotalDue()
		remaining := totalDue.Sub(repaid)
		if amount.GreaterThan(remaining) {
			return ErrOverRepayment
		}

		ref := fmt.Sprintf("LOAN-%s", l.ID)
		desc := fmt.Sprintf("Loan repayment for Loan %s", l.ID)
		if _, _, err := debitWalletTx(ctx, tx, payerID, amount, models.TxLoanRepay, ref, desc); err != nil {
			return err
		}

		rep = models.Repayment{
			ID:     uuid.New(),
			LoanID: l.ID,
			Amount: amount,
			IsPaid: true,
		}
		err = tx.QueryRow(ctx,
			"INSERT INTO repayments (id, loan_id, amount, is_paid) VALUES ($1, $2, $3, TRUE) RETURNING payment_date",
			rep.ID, rep.LoanID, rep.Amount,
		).Scan(&rep.PaymentDate)
		if err != nil {
			return err
		}

		if repaid.Add(amount).GreaterThanOrEqual(totalDue) {
			l.Status = models.LoanPaid
			if _, err := tx.Exec(ctx, "UPDATE loans SET status = 'PAID' WHERE id = $1", l.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Loan{}, models.Repayment{}, err
	}
	return l, rep, nil
}

// TotalRepaid sums confirmed repayments for the loan.
func (r *LoanPGRepository) TotalRepaid(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	var repaid decimal.Decimal
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM repayments WHERE loan_id = $1 AND is_paid",
		loanID,
	).Scan(&repaid)
	return repaid, err
}

func (r *LoanPGRepository) Repayments(ctx context.Context, loanID uuid.UUID) ([]models.Repayment, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, loan_id, amount, is_paid, payment_date FROM repayments WHERE loan_id = $1 ORDER BY payment_date",
		loanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Repayment
	for rows.Next() {
		var rep models.Repayment
		if err := rows.Scan(&rep.ID, &rep.LoanID, &rep.Amount, &rep.IsPaid, &rep.PaymentDate); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *LoanPGRepository) inTx(ctx context.Context, gateID uuid.UUID, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.logger.Error("Failed to begin transaction",
			slog.String("gate_id", gateID.String()),
			slog.Any("err", err),
		)
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Error("Failed to rollback transaction",
				slog.String("gate_id", gateID.String()),
				slog.Any("err", err),
			)
		}
	}()

	if err := acquireGate(ctx, tx, lockLoan, gateID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockLoanTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (models.Loan, error) {
	var l models.Loan
	err := scanLoan(tx.QueryRow(ctx, "SELECT "+loanColumns+" FROM loans WHERE id = $1 FOR UPDATE", id), &l)
	if err == pgx.ErrNoRows {
		return models.Loan{}, ErrLoanNotFound
	}
	if err != nil {
		return models.Loan{}, err
	}
	return l, nil
}

func scanLoan(row pgx.Row, l *models.Loan) error {
	return row.Scan(
		&l.ID, &l.UserID, &l.Amount, &l.Purpose, &l.RepaymentPeriodMonths,
		&l.Status, &l.InterestRate, &l.ApprovedAt, &l.DueDate, &l.CreatedAt,
	)
}

func (r *LoanPGRepository) listLoans(ctx context.Context, sql string, args ...any) ([]models.Loan, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Loan
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Amount, &l.Purpose, &l.RepaymentPeriodMonths,
			&l.Status, &l.InterestRate, &l.ApprovedAt, &l.DueDate, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
