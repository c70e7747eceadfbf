package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"istqrar/internal/models"
)

type GameyaPGRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewGameyaPGRepository(pool *pgxpool.Pool, logger *slog.Logger) *GameyaPGRepository {
	return &GameyaPGRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *GameyaPGRepository) Create(ctx context.Context, g models.Gameya) (models.Gameya, error) {
	g.ID = uuid.New()
	g.Status = models.GameyaActive
	g.CurrentRound = 1
	g.TotalMembers = 0
	err := r.pool.QueryRow(ctx, `
		INSERT INTO gameyas (id, name, description, creator_id, contribution_amount, max_members, duration_rounds, current_round, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, 'ACTIVE')
		RETURNING created_at`,
		g.ID, g.Name, g.Description, g.CreatorID, g.ContributionAmount, g.MaxMembers, g.DurationRounds,
	).Scan(&g.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create gameya",
			slog.String("creator_id", g.CreatorID.String()),
			slog.Any("err", err),
		)
		return models.Gameya{}, err
	}
	return g, nil
}

func (r *GameyaPGRepository) Get(ctx context.Context, id uuid.UUID) (models.Gameya, error) {
	return r.get(ctx, r.pool, id, false)
}

func (r *GameyaPGRepository) List(ctx context.Context) ([]models.Gameya, error) {
	return r.list(ctx, "SELECT "+gameyaColumns("")+" FROM gameyas ORDER BY created_at DESC")
}

// MyGameyas lists the gameyas the user is an active member of.
func (r *GameyaPGRepository) MyGameyas(ctx context.Context, userID uuid.UUID) ([]models.Gameya, error) {
	return r.list(ctx, `
		SELECT `+gameyaColumns(`g.`)+`
		FROM gameyas g
		JOIN memberships m ON m.gameya_id = g.id AND m.is_active
		WHERE m.user_id = $1
		ORDER BY g.created_at DESC`, userID)
}

// Join activates the user's membership, reactivating a previous one in
// place (keeping its payout order) if the user had left before.
func (r *GameyaPGRepository) Join(ctx context.Context, gameyaID, userID uuid.UUID) (models.Membership, error) {
	var m models.Membership
	err := r.inTx(ctx, gameyaID, func(tx pgx.Tx) error {
		g, err := r.lockGameyaTx(ctx, tx, gameyaID)
		if err != nil {
			return err
		}
		if g.MaxMembers != nil && g.TotalMembers >= *g.MaxMembers {
			return ErrGameyaFull
		}

		err = tx.QueryRow(ctx,
			"SELECT id, user_id, gameya_id, payout_order, is_active, joined_at FROM memberships WHERE user_id = $1 AND gameya_id = $2 FOR UPDATE",
			userID, gameyaID,
		).Scan(&m.ID, &m.UserID, &m.GameyaID, &m.PayoutOrder, &m.IsActive, &m.JoinedAt)
		switch {
		case err == pgx.ErrNoRows:
			m = models.Membership{
				ID:          uuid.New(),
				UserID:      userID,
				GameyaID:    gameyaID,
				PayoutOrder: g.TotalMembers + 1,
				IsActive:    true,
			}
			err = tx.QueryRow(ctx,
				"INSERT INTO memberships (id, user_id, gameya_id, payout_order, is_active) VALUES ($1, $2, $3, $4, TRUE) RETURNING joined_at",
				m.ID, m.UserID, m.GameyaID, m.PayoutOrder,
			).Scan(&m.JoinedAt)
			if err != nil {
				if isUniqueViolation(err) {
					return ErrAlreadyMember
				}
				return err
			}
		case err != nil:
			return err
		case m.IsActive:
			return ErrAlreadyMember
		default:
			// Rejoin keeps the original payout order.
			m.IsActive = true
			if _, err := tx.Exec(ctx, "UPDATE memberships SET is_active = TRUE WHERE id = $1", m.ID); err != nil {
				return err
			}
		}

		return r.recountMembersTx(ctx, tx, gameyaID)
	})
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// Leave deactivates the membership. The payout order is not renumbered;
// a later payout round pointing at the vacated slot finds no beneficiary.
func (r *GameyaPGRepository) Leave(ctx context.Context, gameyaID, userID uuid.UUID) error {
	return r.inTx(ctx, gameyaID, func(tx pgx.Tx) error {
		if _, err := r.lockGameyaTx(ctx, tx, gameyaID); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx,
			"UPDATE memberships SET is_active = FALSE WHERE user_id = $1 AND gameya_id = $2 AND is_active",
			userID, gameyaID,
		)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNotAMember
		}
		return r.recountMembersTx(ctx, tx, gameyaID)
	})
}

// Contribute debits the member's wallet and records the confirmed
// contribution as one unit. The duplicate check runs before the debit,
// under the gameya gate, so a retry cannot pay twice.
func (r *GameyaPGRepository) Contribute(ctx context.Context, gameyaID, userID uuid.UUID, round int, amount decimal.Decimal) (models.Contribution, error) {
	var c models.Contribution
	err := r.inTx(ctx, gameyaID, func(tx pgx.Tx) error {
		g, err := r.lockGameyaTx(ctx, tx, gameyaID)
		if err != nil {
			return err
		}

		var membershipID uuid.UUID
		err = tx.QueryRow(ctx,
			"SELECT id FROM memberships WHERE user_id = $1 AND gameya_id = $2 AND is_active FOR UPDATE",
			userID, gameyaID,
		).Scan(&membershipID)
		if err == pgx.ErrNoRows {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}

		if round == 0 {
			round = g.CurrentRound
		}
		if amount.IsZero() {
			amount = g.ContributionAmount
		}

		var exists bool
		err = tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM contributions WHERE membership_id = $1 AND round = $2 AND confirmed)",
			membershipID, round,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyContributed
		}

		ref := fmt.Sprintf("GAMEYA-%s-ROUND-%d", gameyaID, round)
		desc := fmt.Sprintf("Contribution for Gameya %s, round %d", g.Name, round)
		if _, _, err := debitWalletTx(ctx, tx, userID, amount, models.TxContribution, ref, desc); err != nil {
			return err
		}

		c = models.Contribution{
			ID:           uuid.New(),
			MembershipID: membershipID,
			Amount:       amount,
			Round:        round,
			Confirmed:    true,
		}
		err = tx.QueryRow(ctx,
			"INSERT INTO contributions (id, membership_id, amount, round, confirmed) VALUES ($1, $2, $3, $4, TRUE) RETURNING paid_at",
			c.ID, c.MembershipID, c.Amount, c.Round,
		).Scan(&c.PaidAt)
		if isUniqueViolation(err) {
			return ErrAlreadyContributed
		}
		return err
	})
	if err != nil {
		return models.Contribution{}, err
	}
	return c, nil
}

// Payout credits the beneficiary with the full pot and advances the round
// as one unit. The gameya gate serializes payouts, so two concurrent calls
// cannot both pay the same round.
func (r *GameyaPGRepository) Payout(ctx context.Context, gameyaID uuid.UUID) (models.PayoutResult, error) {
	var res models.PayoutResult
	err := r.inTx(ctx, gameyaID, func(tx pgx.Tx) error {
		g, err := r.lockGameyaTx(ctx, tx, gameyaID)
		if err != nil {
			return err
		}

		var beneficiaryID uuid.UUID
		err = tx.QueryRow(ctx,
			"SELECT user_id FROM memberships WHERE gameya_id = $1 AND payout_order = $2 AND is_active",
			gameyaID, g.CurrentRound,
		).Scan(&beneficiaryID)
		if err == pgx.ErrNoRows {
			return ErrNoEligibleBeneficiary
		}
		if err != nil {
			return err
		}

		var activeMembers int
		err = tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM memberships WHERE gameya_id = $1 AND is_active",
			gameyaID,
		).Scan(&activeMembers)
		if err != nil {
			return err
		}

		// Pot counts every active member, not only the ones who actually
		// contributed this round.
		pot := g.ContributionAmount.Mul(decimal.NewFromInt(int64(activeMembers)))

		ref := fmt.Sprintf("GAMEYA-%s-ROUND-%d", gameyaID, g.CurrentRound)
		desc := fmt.Sprintf("Payout for Gameya %s, round %d", g.Name, g.CurrentRound)
		if _, _, err := creditWalletTx(ctx, tx, beneficiaryID, pot, models.TxPayout, ref, desc); err != nil {
			return err
		}

		res = models.PayoutResult{
			Round:         g.CurrentRound,
			Amount:        pot,
			BeneficiaryID: beneficiaryID,
		}

		if g.CurrentRound >= g.DurationRounds {
			_, err = tx.Exec(ctx, "UPDATE gameyas SET status = 'COMPLETED' WHERE id = $1", gameyaID)
		} else {
			_, err = tx.Exec(ctx, "UPDATE gameyas SET current_round = current_round + 1 WHERE id = $1", gameyaID)
		}
		return err
	})
	if err != nil {
		return models.PayoutResult{}, err
	}
	return res, nil
}

// ContributionsByUser lists the user's contributions within one gameya,
// newest first.
func (r *GameyaPGRepository) ContributionsByUser(ctx context.Context, gameyaID, userID uuid.UUID) ([]models.Contribution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.membership_id, c.amount, c.round, c.confirmed, c.paid_at
		FROM contributions c
		JOIN memberships m ON m.id = c.membership_id
		WHERE m.gameya_id = $1 AND m.user_id = $2
		ORDER BY c.paid_at DESC`,
		gameyaID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contribution
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.ID, &c.MembershipID, &c.Amount, &c.Round, &c.Confirmed, &c.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RoundContributions counts confirmed contributions for the gameya's
// given round.
func (r *GameyaPGRepository) RoundContributions(ctx context.Context, gameyaID uuid.UUID, round int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM contributions c
		JOIN memberships m ON m.id = c.membership_id
		WHERE m.gameya_id = $1 AND c.round = $2 AND c.confirmed`,
		gameyaID, round,
	).Scan(&n)
	return n, err
}

func (r *GameyaPGRepository) inTx(ctx context.Context, gameyaID uuid.UUID, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.logger.Error("Failed to begin transaction",
			slog.String("gameya_id", gameyaID.String()),
			slog.Any("err", err),
		)
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Error("Failed to rollback transaction",
				slog.String("gameya_id", gameyaID.String()),
				slog.Any("err", err),
			)
		}
	}()

	if err := acquireGate(ctx, tx, lockGameya, gameyaID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockGameyaTx loads the gameya row under FOR UPDATE and rejects
// non-active groups; the state machine only moves while ACTIVE.
func (r *GameyaPGRepository) lockGameyaTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (models.Gameya, error) {
	g, err := r.get(ctx, tx, id, true)
	if err != nil {
		return models.Gameya{}, err
	}
	if g.Status != models.GameyaActive {
		return models.Gameya{}, ErrGameyaNotActive
	}
	return g, nil
}

func (r *GameyaPGRepository) recountMembersTx(ctx context.Context, tx pgx.Tx, gameyaID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE gameyas SET total_members = (
			SELECT COUNT(*) FROM memberships WHERE gameya_id = $1 AND is_active
		) WHERE id = $1`,
		gameyaID,
	)
	return err
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *GameyaPGRepository) get(ctx context.Context, q queryRower, id uuid.UUID, forUpdate bool) (models.Gameya, error) {
	sql := "SELECT " + gameyaColumns("") + " FROM gameyas WHERE id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var g models.Gameya
	err := q.QueryRow(ctx, sql, id).Scan(
		&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.ContributionAmount,
		&g.TotalMembers, &g.MaxMembers, &g.DurationRounds, &g.CurrentRound,
		&g.Status, &g.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return models.Gameya{}, ErrGameyaNotFound
	}
	if err != nil {
		return models.Gameya{}, err
	}
	return g, nil
}

func (r *GameyaPGRepository) list(ctx context.Context, sql string, args ...any) ([]models.Gameya, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Gameya
	for rows.Next() {
		var g models.Gameya
		if err := rows.Scan(
			&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.ContributionAmount,
			&g.TotalMembers, &g.MaxMembers, &g.DurationRounds, &g.CurrentRound,
			&g.Status, &g.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func gameyaColumns(prefix string) string {
	cols := []string{"id", "name", "description", "creator_id", "contribution_amount", "total_members", "max_members", "duration_rounds", "current_round", "status", "created_at"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += prefix + c
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
