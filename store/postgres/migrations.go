package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the token ledger store (PostgreSQL).
var Migrations = migrate.NewGroup("tokenledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_ledger_accounts",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_accounts (
    address             TEXT PRIMARY KEY,
    balance             NUMERIC(78,0) NOT NULL DEFAULT 0,
    locked              NUMERIC(78,0) NOT NULL DEFAULT 0,
    seed_granted        BOOLEAN NOT NULL DEFAULT FALSE,
    pending_consumption NUMERIC(78,0) NOT NULL DEFAULT 0,
    last_regen_at       TIMESTAMPTZ,
    seed_derived        NUMERIC(78,0) NOT NULL DEFAULT 0,
    dev_locked          NUMERIC(78,0) NOT NULL DEFAULT 0,
    seed_locked         NUMERIC(78,0) NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT ledger_accounts_locked_le_balance CHECK (locked <= balance),
    CONSTRAINT ledger_accounts_seed_derived_le_balance CHECK (seed_derived <= balance)
);

CREATE INDEX IF NOT EXISTS idx_ledger_accounts_pending ON ledger_accounts (address) WHERE pending_consumption > 0;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_wallets",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_wallets (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    mint_authority TEXT NOT NULL,
    founder        TEXT NOT NULL,
    dev_pool       TEXT NOT NULL,
    dao_treasury   TEXT NOT NULL,
    pledge_fund    TEXT NOT NULL,
    initialized_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_wallets`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_actions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_actions (
    id        TEXT PRIMARY KEY,
    address   TEXT NOT NULL,
    caller    TEXT NOT NULL,
    amount    NUMERIC(78,0) NOT NULL,
    kind      SMALLINT NOT NULL DEFAULT 0,
    metadata  JSONB NOT NULL DEFAULT '{}',
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_actions_address_ts ON ledger_actions (address, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_actions_ts ON ledger_actions (timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_actions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_regenerations",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_regenerations (
    id            TEXT PRIMARY KEY,
    address       TEXT NOT NULL,
    caller        TEXT NOT NULL,
    requested     NUMERIC(78,0) NOT NULL,
    amount        NUMERIC(78,0) NOT NULL,
    user_share    NUMERIC(78,0) NOT NULL,
    pledge_share  NUMERIC(78,0) NOT NULL DEFAULT 0,
    dao_share     NUMERIC(78,0) NOT NULL DEFAULT 0,
    founder_share NUMERIC(78,0) NOT NULL DEFAULT 0,
    seed_derived  NUMERIC(78,0) NOT NULL DEFAULT 0,
    self_service  BOOLEAN NOT NULL DEFAULT FALSE,
    timestamp     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_regenerations_address_ts ON ledger_regenerations (address, timestamp DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_regenerations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_transfers",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_transfers (
    id           TEXT PRIMARY KEY,
    from_address TEXT NOT NULL,
    to_address   TEXT NOT NULL,
    amount       NUMERIC(78,0) NOT NULL,
    kind         TEXT NOT NULL DEFAULT 'transfer',
    memo         TEXT NOT NULL DEFAULT '',
    timestamp    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_transfers_from_ts ON ledger_transfers (from_address, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_transfers_to_ts ON ledger_transfers (to_address, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_transfers_kind ON ledger_transfers (kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_transfers`)
				return err
			},
		},
	)
}
