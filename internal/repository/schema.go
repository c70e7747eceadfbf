package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL UNIQUE,
	balance DECIMAL(15, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGSERIAL PRIMARY KEY,
	wallet_id UUID NOT NULL REFERENCES wallets(id),
	type VARCHAR(20) NOT NULL CHECK (type IN ('DEPOSIT', 'WITHDRAWAL', 'CONTRIBUTION', 'PAYOUT', 'LOAN_DISBURSE', 'LOAN_REPAY')),
	amount DECIMAL(15, 2) NOT NULL CHECK (amount > 0),
	reference_id VARCHAR(100) NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_id);

CREATE TABLE IF NOT EXISTS gameyas (
	id UUID PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	creator_id UUID NOT NULL,
	contribution_amount DECIMAL(15, 2) NOT NULL CHECK (contribution_amount > 0),
	total_members INT NOT NULL DEFAULT 0,
	max_members INT,
	duration_rounds INT NOT NULL CHECK (duration_rounds > 0),
	current_round INT NOT NULL DEFAULT 1,
	status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'COMPLETED', 'INACTIVE')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS memberships (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	gameya_id UUID NOT NULL REFERENCES gameyas(id),
	payout_order INT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, gameya_id)
);
CREATE INDEX IF NOT EXISTS idx_memberships_gameya ON memberships(gameya_id);

CREATE TABLE IF NOT EXISTS contributions (
	id UUID PRIMARY KEY,
	membership_id UUID NOT NULL REFERENCES memberships(id),
	amount DECIMAL(15, 2) NOT NULL CHECK (amount > 0),
	round INT NOT NULL,
	confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	paid_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_confirmed_contribution
	ON contributions(membership_id, round) WHERE confirmed;

CREATE TABLE IF NOT EXISTS loans (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	amount DECIMAL(15, 2) NOT NULL CHECK (amount > 0),
	purpose TEXT NOT NULL,
	repayment_period_months INT NOT NULL DEFAULT 6,
	status VARCHAR(20) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'PAID')),
	interest_rate DECIMAL(5, 2) NOT NULL DEFAULT 0 CHECK (interest_rate >= 0),
	approved_at TIMESTAMPTZ,
	due_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);

CREATE TABLE IF NOT EXISTS repayments (
	id UUID PRIMARY KEY,
	loan_id UUID NOT NULL REFERENCES loans(id),
	amount DECIMAL(15, 2) NOT NULL CHECK (amount > 0),
	is_paid BOOLEAN NOT NULL DEFAULT FALSE,
	payment_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_repayments_loan ON repayments(loan_id);

CREATE TABLE IF NOT EXISTS trust_scores (
	user_id UUID PRIMARY KEY,
	score DECIMAL(5, 2) NOT NULL DEFAULT 50 CHECK (score >= 0 AND score <= 100)
);
`

// Migrate applies the schema. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
