package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"istqrar/internal/repository"
	"istqrar/internal/service"
	"istqrar/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWalletService_Deposit_Integration(t *testing.T) {
	pool, teardown := testutil.SetupTestDB(t)
	defer teardown()
	repo := repository.NewWalletPGRepository(pool, testLogger)
	svc := service.NewWalletService(repo, testLogger)
	userID := uuid.New()
	amount := decimal.NewFromFloat(123.45)

	balance, err := svc.Deposit(context.Background(), userID, amount)
	assert.NoError(t, err)
	assert.True(t, balance.Equal(amount))

	balance, err = svc.Deposit(context.Background(), userID, amount)
	assert.NoError(t, err)
	assert.True(t, balance.Equal(amount.Add(amount)))
}

func TestWalletService_Withdraw_Integration(t *testing.T) {
	pool, teardown := testutil.SetupTestDB(t)
	defer teardown()
	repo := repository.NewWalletPGRepository(pool, testLogger)
	svc := service.NewWalletService(repo, testLogger)
	userID := uuid.New()
	_, _ = svc.Deposit(context.Background(), userID, decimal.NewFromInt(100))

	balance, err := svc.Withdraw(context.Background(), userID, decimal.NewFromInt(50))
	assert.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))

	balance, err = svc.Withdraw(context.Background(), userID, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
}

func TestWalletService_Deposit_ZeroAmount(t *testing.T) {
	pool, teardown := testutil.SetupTestDB(t)
	defer teardown()
	repo := repository.NewWalletPGRepository(pool, testLogger)
	svc := service.NewWalletService(repo, testLogger)

	_, err := svc.Deposit(context.Background(), uuid.New(), decimal.Zero)
	assert.ErrorIs(t, err, repository.ErrInvalidAmount)
}

func TestWalletService_Withdraw_NegativeAmount(t *testing.T) {
	pool, teardown := testutil.SetupTestDB(t)
	defer teardown()
	repo := repository.NewWalletPGRepository(pool, testLogger)
	svc := service.NewWalletService(repo, testLogger)
	userID := uuid.New()
	_, _ = svc.Deposit(context.Background(), userID, decimal.NewFromInt(100))

	_, err := svc.Withdraw(context.Background(), userID, decimal.NewFromInt(-100))
	assert.ErrorIs(t, err, repository.ErrInvalidAmount)
}

func TestWalletService_Me_CreatesLazily(t *testing.T) {
	pool, teardown := testutil.SetupTestDB(t)
	defer teardown()
	repo := repository.NewWalletPGRepository(pool, testLogger)
	svc := service.NewWalletService(repo, testLogger)
	userID := uuid.New()

	w, err := svc.Me(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, userID, w.UserID)
	assert.True(t, w.Balance.IsZero())
}

func TestWalletService_History(t *testing.T) {
	pool, teardown := testutil.SetupTestDB(t)
	defer teardown()
	repo := repository.NewWalletPGRepository(pool, testLogger)
	svc := service.NewWalletService(repo, testLogger)
	userID := uuid.New()

	_, err := svc.Deposit(context.Background(), userID, decimal.NewFromInt(10))
	assert.NoError(t, err)
	_, err = svc.Withdraw(context.Background(), userID, decimal.NewFromInt(3))
	assert.NoError(t, err)

	txs, err := svc.History(context.Background(), userID)
	assert.NoError(t, err)
	assert.Len(t, txs, 2)
}
