package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
)

type WalletPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewWalletPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *WalletPGRepository {
	return &WalletPGRepository{
		pool:   pool,
		logger: logger,
	}
}

// getOrCreateWalletTx locks the user's wallet row for the remainder of tx,
// creating it with a zero balance if it does not exist yet. The advisory
// gate is taken before the row lock so every caller converges on the same
// acquisition order.
func getOrCreateWalletTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (models.Wallet, bool, error) {
	if err := acquireGate(ctx, tx, lockWallet, userID); err != nil {
		return models.Wallet{}, false, err
	}

	var w models.Wallet
	created := false
	err := tx.QueryRow(ctx,
		"SELECT id, user_id, balance, last_updated FROM wallets WHERE user_id = $1 FOR UPDATE",
		userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.LastUpdated)
	if err == pgx.ErrNoRows {
		_, err = tx.Exec(ctx,
			"INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, 0) ON CONFLICT (user_id) DO NOTHING",
			uuid.New(), userID,
		)
		if err != nil {
			return models.Wallet{}, false, err
		}
		created = true
		err = tx.QueryRow(ctx,
			"SELECT id, user_id, balance, last_updated FROM wallets WHERE user_id = $1 FOR UPDATE",
			userID,
		).Scan(&w.ID, &w.UserID, &w.Balance, &w.LastUpdated)
	}
	if err != nil {
		return models.Wallet{}, false, err
	}
	return w, created, nil
}

// creditWalletTx increases the balance and appends the ledger row in the
// caller's transaction. amount must be positive.
func creditWalletTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error) {
	w, _, err := getOrCreateWalletTx(ctx, tx, userID)
	if err != nil {
		return models.Transaction{}, decimal.Zero, err
	}
	return applyBalanceChangeTx(ctx, tx, w, amount, amount, opType, referenceID, description)
}

// debitWalletTx decreases the balance and appends the ledger row in the
// caller's transaction. Fails with ErrInsufficientFunds before mutating
// anything when the balance does not cover amount.
func debitWalletTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error) {
	w, _, err := getOrCreateWalletTx(ctx, tx, userID)
	if err != nil {
		return models.Transaction{}, decimal.Zero, err
	}
	if w.Balance.LessThan(amount) {
		return models.Transaction{}, w.Balance, ErrInsufficientFunds
	}
	return applyBalanceChangeTx(ctx, tx, w, amount.Neg(), amount, opType, referenceID, description)
}

func applyBalanceChangeTx(ctx context.Context, tx pgx.Tx, w models.Wallet, delta, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error) {
	newBalance := w.Balance.Add(delta)
	_, err := tx.Exec(ctx,
		"UPDATE wallets SET balance = $1, last_updated = NOW() WHERE id = $2",
		newBalance, w.ID,
	)
	if err != nil {
		return models.Transaction{}, w.Balance, err
	}

	entry := models.Transaction{
		WalletID:    w.ID,
		Type:        opType,
		Amount:      amount,
		ReferenceID: referenceID,
		Description: description,
	}
	err = tx.QueryRow(ctx,
		"INSERT INTO transactions (wallet_id, type, amount, reference_id, description) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at",
		entry.WalletID, entry.Type, entry.Amount, entry.ReferenceID, entry.Description,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return models.Transaction{}, w.Balance, err
	}
	return entry, newBalance, nil
}

func (r *WalletPGRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (models.Wallet, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.logger.Error("Failed to begin transaction",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
		return models.Wallet{}, false, err
	}
	defer r.rollback(ctx, tx, userID)

	w, created, err := getOrCreateWalletTx(ctx, tx, userID)
	if err != nil {
		return models.Wallet{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Wallet{}, false, err
	}
	return w, created, nil
}

// Credit atomically increases the balance and appends a ledger entry.
func (r *WalletPGRepository) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, decimal.Zero, ErrInvalidAmount
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Transaction{}, decimal.Zero, err
	}
	defer r.rollback(ctx, tx, userID)

	entry, balance, err := creditWalletTx(ctx, tx, userID, amount, opType, referenceID, description)
	if err != nil {
		return models.Transaction{}, balance, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Transaction{}, balance, err
	}
	return entry, balance, nil
}

// Debit atomically decreases the balance and appends a ledger entry.
// The balance check and the mutation happen under the same row lock.
func (r *WalletPGRepository) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opType, referenceID, description string) (models.Transaction, decimal.Decimal, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, decimal.Zero, ErrInvalidAmount
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Transaction{}, decimal.Zero, err
	}
	defer r.rollback(ctx, tx, userID)

	entry, balance, err := debitWalletTx(ctx, tx, userID, amount, opType, referenceID, description)
	if err != nil {
		return models.Transaction{}, balance, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Transaction{}, balance, err
	}
	return entry, balance, nil
}

func (r *WalletPGRepository) GetByUser(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx,
		"SELECT id, user_id, balance, last_updated FROM wallets WHERE user_id = $1",
		userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.LastUpdated)
	if err == pgx.ErrNoRows {
		return models.Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get wallet",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
		return models.Wallet{}, err
	}
	return w, nil
}

func (r *WalletPGRepository) Transactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.wallet_id, t.type, t.amount, t.reference_id, t.description, t.created_at
		FROM transactions t
		JOIN wallets w ON w.id = t.wallet_id
		WHERE w.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.ReferenceID, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Reconcile returns the stored balance and the signed sum of the wallet's
// ledger. The two must always be equal.
func (r *WalletPGRepository) Reconcile(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var balance, ledgerSum decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT w.balance,
			COALESCE(SUM(CASE WHEN t.type IN ('DEPOSIT', 'PAYOUT', 'LOAN_DISBURSE') THEN t.amount ELSE -t.amount END), 0)
		FROM wallets w
		LEFT JOIN transactions t ON t.wallet_id = w.id
		WHERE w.id = $1
		GROUP BY w.balance`,
		walletID,
	).Scan(&balance, &ledgerSum)
	if err == pgx.ErrNoRows {
		return decimal.Zero, decimal.Zero, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return balance, ledgerSum, nil
}

func (r *WalletPGRepository) rollback(ctx context.Context, tx pgx.Tx, userID uuid.UUID) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.Error("Failed to rollback transaction",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
	}
}
