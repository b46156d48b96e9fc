package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the token ledger store (SQLite).
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
    balance             TEXT NOT NULL DEFAULT '0',
    locked              TEXT NOT NULL DEFAULT '0',
    seed_granted        INTEGER NOT NULL DEFAULT 0,
    pending_consumption TEXT NOT NULL DEFAULT '0',
    last_regen_at       TEXT,
    seed_derived        TEXT NOT NULL DEFAULT '0',
    dev_locked          TEXT NOT NULL DEFAULT '0',
    seed_locked         TEXT NOT NULL DEFAULT '0',
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_accounts_pending ON ledger_accounts (address) WHERE pending_consumption != '0';
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
    initialized_at TEXT NOT NULL DEFAULT (datetime('now'))
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
    amount    TEXT NOT NULL,
    kind      INTEGER NOT NULL DEFAULT 0,
    metadata  TEXT NOT NULL DEFAULT '{}',
    timestamp TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_actions_address_ts ON ledger_actions (address, timestamp);
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
    requested     TEXT NOT NULL,
    amount        TEXT NOT NULL,
    user_share    TEXT NOT NULL,
    pledge_share  TEXT NOT NULL DEFAULT '0',
    dao_share     TEXT NOT NULL DEFAULT '0',
    founder_share TEXT NOT NULL DEFAULT '0',
    seed_derived  TEXT NOT NULL DEFAULT '0',
    self_service  INTEGER NOT NULL DEFAULT 0,
    timestamp     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_regenerations_address_ts ON ledger_regenerations (address, timestamp);
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
    amount       TEXT NOT NULL,
    kind         TEXT NOT NULL DEFAULT 'transfer',
    memo         TEXT NOT NULL DEFAULT '',
    timestamp    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ledger_transfers_from_ts ON ledger_transfers (from_address, timestamp);
CREATE INDEX IF NOT EXISTS idx_ledger_transfers_to_ts ON ledger_transfers (to_address, timestamp);
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
