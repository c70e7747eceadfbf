package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TrustPGRepository is the trust-score collaborator. Scores live outside
// the financial-consistency invariant; callers treat adjustment failures
// as non-fatal.
type TrustPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewTrustPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *TrustPGRepository {
	return &TrustPGRepository{
		pool:   pool,
		logger: logger,
	}
}

// Adjust adds delta to the user's score, clamped to [0, 100], creating
// the row at the default score on first touch. Returns the new score.
func (r *TrustPGRepository) Adjust(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var score decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		INSERT INTO trust_scores (user_id, score)
		VALUES ($1, LEAST(100, GREATEST(0, 50 + $2)))
		ON CONFLICT (user_id) DO UPDATE
		SET score = LEAST(100, GREATEST(0, trust_scores.score + $2))
		RETURNING score`,
		userID, delta,
	).Scan(&score)
	if err != nil {
		r.logger.Error("Failed to adjust trust score",
			slog.String("user_id", userID.String()),
			slog.Any("delta", delta),
			slog.Any("err", err),
		)
		return decimal.Zero, err
	}
	return score, nil
}

// Get returns the user's score, or the default for users without a row.
func (r *TrustPGRepository) Get(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var score decimal.Decimal
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE((SELECT score FROM trust_scores WHERE user_id = $1), 50)",
		userID,
	).Scan(&score)
	if err != nil {
		r.logger.Error("Failed to get trust score",
			slog.String("user_id", userID.String()),
			slog.Any("err", err),
		)
		return decimal.Zero, err
	}
	return score, nil
}
