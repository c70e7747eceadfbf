package repository

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Entity kinds for advisory locking. Compound operations lock their
// business entity before touching wallet rows, always in this order:
// advisory lock first, then row locks. Keeps lock acquisition in one
// global order across engines.
const (
	lockGameya = "gameya"
	lockLoan   = "loan"
	lockWallet = "wallet"
)

func lockKey(kind string, id uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write(id[:])
	return int64(h.Sum64())
}

// acquireGate takes a transaction-scoped advisory lock for (kind, id).
// Released automatically at commit or rollback.
func acquireGate(ctx context.Context, tx pgx.Tx, kind string, id uuid.UUID) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(kind, id))
	return err
}
