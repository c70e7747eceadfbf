package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"istqrar/internal/models"
	"istqrar/internal/repository"
	"istqrar/internal/service"
	"istqrar/internal/testutil"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loanFixture struct {
	pool    *pgxpool.Pool
	wallets *service.WalletService
	loans   *service.LoanService
	trust   *repository.TrustPGRepository
	walletR *repository.WalletPGRepository
	admin   service.Actor
}

func newLoanFixture(t *testing.T) (*loanFixture, func()) {
	pool, teardown := testutil.SetupTestDB(t)
	walletRepo := repository.NewWalletPGRepository(pool, testLogger)
	loanRepo := repository.NewLoanPGRepository(pool, testLogger)
	trustRepo := repository.NewTrustPGRepository(pool, testLogger)
	return &loanFixture{
		pool:    pool,
		wallets: service.NewWalletService(walletRepo, testLogger),
		loans:   service.NewLoanService(loanRepo, trustRepo, testLogger),
		trust:   trustRepo,
		walletR: walletRepo,
		admin:   service.Actor{UserID: uuid.New(), Role: service.RoleAdmin},
	}, teardown
}

// raiseTrust lifts the user above the loan-eligibility threshold.
func (f *loanFixture) raiseTrust(t *testing.T, userID uuid.UUID) {
	_, err := f.trust.Adjust(context.Background(), userID, decimal.NewFromInt(20))
	require.NoError(t, err)
}

func (f *loanFixture) approvedLoan(t *testing.T, borrower uuid.UUID, amount int64, rate int64) models.Loan {
	ctx := context.Background()
	f.raiseTrust(t, borrower)
	l, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(amount), "business", 6)
	require.NoError(t, err)
	r := decimal.NewFromInt(rate)
	l, err = f.loans.Approve(ctx, f.admin, l.ID, &r, nil)
	require.NoError(t, err)
	return l
}

func TestLoan_Apply_TrustScoreGate(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()

	// Default score is 50, below the threshold of 60.
	_, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(100), "rent", 3)
	assert.ErrorIs(t, err, repository.ErrTrustScoreTooLow)

	f.raiseTrust(t, borrower)
	l, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(100), "rent", 3)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPending, l.Status)
}

func TestLoan_Apply_OneUnsettledLoanPerUser(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	f.raiseTrust(t, borrower)

	_, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(100), "rent", 3)
	require.NoError(t, err)
	_, err = f.loans.Apply(ctx, borrower, decimal.NewFromInt(200), "car", 6)
	assert.ErrorIs(t, err, repository.ErrActiveLoanExists)
}

func TestLoan_Approve_DisbursesAndSetsDueDate(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	f.raiseTrust(t, borrower)

	l, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(1000), "stock", 6)
	require.NoError(t, err)

	// Non-admins cannot approve.
	_, err = f.loans.Approve(ctx, service.Actor{UserID: borrower}, l.ID, nil, nil)
	assert.ErrorIs(t, err, service.ErrForbidden)

	rate := decimal.NewFromInt(10)
	l, err = f.loans.Approve(ctx, f.admin, l.ID, &rate, nil)
	require.NoError(t, err)
	assert.Equal(t, models.LoanApproved, l.Status)
	assert.NotNil(t, l.ApprovedAt)
	require.NotNil(t, l.DueDate)
	wantDue := time.Now().AddDate(0, 0, 30*6)
	assert.WithinDuration(t, wantDue, *l.DueDate, 24*time.Hour)

	// Principal landed in the borrower's wallet with a ledger entry.
	w, err := f.wallets.Me(ctx, borrower)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(1000)))
	balance, ledgerSum, err := f.walletR.Reconcile(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledgerSum))

	_, err = f.loans.Approve(ctx, f.admin, l.ID, nil, nil)
	assert.ErrorIs(t, err, repository.ErrAlreadyProcessed)
	_, err = f.loans.Reject(ctx, f.admin, l.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyProcessed)
}

func TestLoan_Reject_TerminalAndReapply(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	f.raiseTrust(t, borrower)

	l, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(100), "rent", 3)
	require.NoError(t, err)
	l, err = f.loans.Reject(ctx, f.admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanRejected, l.Status)

	// No money moved.
	w, err := f.wallets.Me(ctx, borrower)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	// A rejected loan is settled; applying again is allowed.
	_, err = f.loans.Apply(ctx, borrower, decimal.NewFromInt(100), "rent", 3)
	assert.NoError(t, err)
}

func TestLoan_Repay_SplitSequenceReachesPaid(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	l := f.approvedLoan(t, borrower, 1000, 10)
	assert.True(t, l.TotalDue().Equal(decimal.NewFromInt(1100)))

	// Disbursement left 1000; top up to cover the interest.
	_, err := f.wallets.Deposit(ctx, borrower, decimal.NewFromInt(100))
	require.NoError(t, err)
	owner := service.Actor{UserID: borrower}

	l, err = f.loans.Repay(ctx, owner, l.ID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, models.LoanApproved, l.Status)

	l, err = f.loans.Repay(ctx, owner, l.ID, decimal.NewFromInt(600))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, l.Status)

	// Terminal: nothing further can be repaid.
	_, err = f.loans.Repay(ctx, owner, l.ID, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, repository.ErrNotRepayable)

	// Trust: 50 +20 (raise) +5 (partial) +20 (completion) = 95.
	score, err := f.trust.Get(ctx, borrower)
	require.NoError(t, err)
	assert.True(t, score.Equal(decimal.NewFromInt(95)))

	w, err := f.wallets.Me(ctx, borrower)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	balance, ledgerSum, err := f.walletR.Reconcile(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledgerSum))
}

func TestLoan_Repay_OverRepaymentRejected(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	l := f.approvedLoan(t, borrower, 1000, 10)
	_, err := f.wallets.Deposit(ctx, borrower, decimal.NewFromInt(1000))
	require.NoError(t, err)

	_, err = f.loans.Repay(ctx, service.Actor{UserID: borrower}, l.ID, decimal.NewFromInt(1200))
	assert.ErrorIs(t, err, repository.ErrOverRepayment)

	// Nothing was debited.
	w, err := f.wallets.Me(ctx, borrower)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(2000)))
}

func TestLoan_Repay_InsufficientFundsPropagates(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	l := f.approvedLoan(t, borrower, 100, 0)

	// Drain the disbursed funds.
	_, err := f.wallets.Withdraw(ctx, borrower, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = f.loans.Repay(ctx, service.Actor{UserID: borrower}, l.ID, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
}

func TestLoan_Repay_Authorization(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower, stranger := uuid.New(), uuid.New()
	l := f.approvedLoan(t, borrower, 100, 0)

	_, err := f.loans.Repay(ctx, service.Actor{UserID: stranger}, l.ID, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, service.ErrForbidden)

	// An admin may repay on behalf of the borrower; the admin's own
	// wallet is debited.
	_, err = f.wallets.Deposit(ctx, f.admin.UserID, decimal.NewFromInt(100))
	require.NoError(t, err)
	l, err = f.loans.Repay(ctx, f.admin, l.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, l.Status)
}

func TestLoan_Repay_ConcurrentNeverExceedsTotalDue(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	l := f.approvedLoan(t, borrower, 100, 0)
	_, err := f.wallets.Deposit(ctx, borrower, decimal.NewFromInt(1000))
	require.NoError(t, err)
	owner := service.Actor{UserID: borrower}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.loans.Repay(ctx, owner, l.ID, decimal.NewFromInt(30))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrOverRepayment)
			}
		}()
	}
	wg.Wait()

	// 3 x 30 fit into the 100 due; the rest must be refused.
	assert.Equal(t, 3, succeeded)

	loanRepo := repository.NewLoanPGRepository(f.pool, testLogger)
	repaid, err := loanRepo.TotalRepaid(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, repaid.Equal(decimal.NewFromInt(90)))

	// The remainder settles the loan.
	got, err := f.loans.Repay(ctx, owner, l.ID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, got.Status)
}

func TestLoan_ActiveAndHistoryProjections(t *testing.T) {
	f, teardown := newLoanFixture(t)
	defer teardown()
	ctx := context.Background()
	borrower := uuid.New()
	f.raiseTrust(t, borrower)

	l, err := f.loans.Apply(ctx, borrower, decimal.NewFromInt(100), "rent", 3)
	require.NoError(t, err)

	active, err := f.loans.Active(ctx, borrower)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = f.loans.Reject(ctx, f.admin, l.ID)
	require.NoError(t, err)

	active, err = f.loans.Active(ctx, borrower)
	require.NoError(t, err)
	assert.Empty(t, active)

	history, err := f.loans.History(ctx, service.Actor{UserID: borrower})
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Admins see everything.
	history, err = f.loans.History(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Strangers cannot read someone else's loan.
	_, _, err = f.loans.Get(ctx, service.Actor{UserID: uuid.New()}, l.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)
}
