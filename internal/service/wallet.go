package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
	"istqrar/internal/repository"
)

//go:generate mockgen -source=wallet.go -destination=../../test/mock_wallet_repository.go -package=test WalletRepository

type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (models.Wallet, bool, error)
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	Transactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

// WalletService is the only path for balance changes. Every mutation is
// paired with exactly one ledger entry by the repository.
type WalletService struct {
	repo       WalletRepository
	logger     *slog.Logger
	maxRetries int
}

func NewWalletService(repo WalletRepository, logger *slog.Logger) *WalletService {
	return &WalletService{
		repo:       repo,
		logger:     logger,
		maxRetries: 3,
	}
}

func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		s.logger.Error("Deposit failed: amount must be positive",
			slog.String("user_id", userID.String()),
			slog.Any("amount", amount),
		)
		return decimal.Zero, repository.ErrInvalidAmount
	}
	var balance decimal.Decimal
	err := withRetry(ctx, s.logger, "wallet.deposit", s.maxRetries, func() error {
		var err error
		_, balance, err = s.repo.Credit(ctx, userID, amount, models.TxDeposit, "WALLET-DEPOSIT", "Wallet deposit")
		return err
	})
	if err != nil {
		s.logger.Error("Deposit failed",
			slog.String("user_id", userID.String()),
			slog.Any("amount", amount),
			slog.Any("err", err),
		)
		return balance, err
	}
	return balance, nil
}

func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		s.logger.Error("Withdraw failed: amount must be positive",
			slog.String("user_id", userID.String()),
			slog.Any("amount", amount),
		)
		return decimal.Zero, repository.ErrInvalidAmount
	}
	var balance decimal.Decimal
	err := withRetry(ctx, s.logger, "wallet.withdraw", s.maxRetries, func() error {
		var err error
		_, balance, err = s.repo.Debit(ctx, userID, amount, models.TxWithdrawal, "WALLET-WITHDRAW", "Wallet withdrawal")
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			s.logger.Warn("Withdraw failed: insufficient funds",
				slog.String("user_id", userID.String()),
				slog.Any("amount", amount),
				slog.Any("balance", balance),
			)
			return balance, err
		}
		s.logger.Error("Withdraw failed",
			slog.String("user_id", userID.String()),
			slog.Any("amount", amount),
			slog.Any("err", err),
		)
		return balance, err
	}
	return balance, nil
}

// Me returns the caller's wallet, creating it on first touch.
func (s *WalletService) Me(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	w, _, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get or create wallet",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
		return models.Wallet{}, err
	}
	return w, nil
}

func (s *WalletService) History(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	txs, err := s.repo.Transactions(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load transaction history",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
		return nil, err
	}
	return txs, nil
}
