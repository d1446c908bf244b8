package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Feeledger store (SQLite).
var Migrations = migrate.NewGroup("feeledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_feeledger_fees",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS feeledger_fees (
    id              TEXT PRIMARY KEY,
    account_id      TEXT NOT NULL DEFAULT '',
    fee_type        TEXT NOT NULL DEFAULT '',
    academic_period TEXT NOT NULL DEFAULT '',
    amount          INTEGER NOT NULL DEFAULT 0,
    paid_amount     INTEGER NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'ugx',
    due_date        TEXT NOT NULL DEFAULT (datetime('now')),
    status          TEXT NOT NULL DEFAULT 'pending',
    paid_at         TEXT,
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),
    CHECK (amount > 0),
    CHECK (paid_amount >= 0 AND paid_amount <= amount)
);

CREATE INDEX IF NOT EXISTS idx_feeledger_fees_account ON feeledger_fees (account_id);
CREATE INDEX IF NOT EXISTS idx_feeledger_fees_status ON feeledger_fees (account_id, status);
CREATE INDEX IF NOT EXISTS idx_feeledger_fees_period ON feeledger_fees (account_id, academic_period);
CREATE INDEX IF NOT EXISTS idx_feeledger_fees_due ON feeledger_fees (due_date);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS feeledger_fees`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_feeledger_payments",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS feeledger_payments (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL DEFAULT '',
    fee_id      TEXT NOT NULL DEFAULT '',
    amount      INTEGER NOT NULL DEFAULT 0,
    currency    TEXT NOT NULL DEFAULT 'ugx',
    method      TEXT NOT NULL DEFAULT '',
    reference   TEXT NOT NULL DEFAULT '',
    recorded_by TEXT NOT NULL DEFAULT '',
    applied_at  TEXT NOT NULL DEFAULT (datetime('now')),
    metadata    TEXT NOT NULL DEFAULT '{}',
    CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_feeledger_payments_account ON feeledger_payments (account_id, applied_at);
CREATE INDEX IF NOT EXISTS idx_feeledger_payments_fee ON feeledger_payments (fee_id, applied_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS feeledger_payments`)
				return err
			},
		},
	)
}
