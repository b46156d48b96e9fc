// Package sqlite implements the ledger store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	ledgerstore "github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tokenledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tokenledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, addr types.Address) (*account.Account, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).
		Where("address = ?", addrText(addr)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokenledger.ErrNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel
	q := s.sdb.NewSelect(&models)

	if opts.PendingOnly {
		q = q.Where("pending_consumption != '0'")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("address ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// SaveAccounts upserts every record with one multi-row statement. SQLite
// runs a single statement atomically.
func (s *Store) SaveAccounts(ctx context.Context, accounts []*account.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	models := make([]accountModel, len(accounts))
	for i, a := range accounts {
		models[i] = toAccountModel(a)
	}
	_, err := s.sdb.NewInsert(&models).
		OnConflict("(address) DO UPDATE").
		Set("balance = EXCLUDED.balance").
		Set("locked = EXCLUDED.locked").
		Set("seed_granted = EXCLUDED.seed_granted").
		Set("pending_consumption = EXCLUDED.pending_consumption").
		Set("last_regen_at = EXCLUDED.last_regen_at").
		Set("seed_derived = EXCLUDED.seed_derived").
		Set("dev_locked = EXCLUDED.dev_locked").
		Set("seed_locked = EXCLUDED.seed_locked").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Wallet Store ====================

func (s *Store) GetWallets(ctx context.Context) (*account.Wallets, error) {
	m := new(walletsModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", walletsRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokenledger.ErrNotFound
		}
		return nil, err
	}
	return fromWalletsModel(m)
}

// InitWallets upserts the genesis accounts, guarded on the wallet row being
// absent, and then inserts the wallet row. Genesis records carry absolute
// values, so a retry after a failure between the two writes overwrites
// what the failed attempt left instead of adding to it, and no ledger
// operation can observe the accounts before the wallet row exists.
func (s *Store) InitWallets(ctx context.Context, w *account.Wallets, genesis []*account.Account) error {
	for _, a := range genesis {
		if err := s.upsertGenesis(ctx, a); err != nil {
			return fmt.Errorf("tokenledger/sqlite: genesis account %s: %w", a.Address.Hex(), err)
		}
	}

	res, err := s.sdb.NewInsert(toWalletsModel(w)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tokenledger.ErrAlreadyInitialized
	}
	return nil
}

func (s *Store) upsertGenesis(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	var addr string
	err := s.sdb.NewRaw(`
		INSERT INTO ledger_accounts (
			address, balance, locked, seed_granted, pending_consumption, last_regen_at,
			seed_derived, dev_locked, seed_locked, created_at, updated_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM ledger_wallets)
		ON CONFLICT (address) DO UPDATE SET
			balance = excluded.balance,
			locked = excluded.locked,
			seed_granted = excluded.seed_granted,
			pending_consumption = excluded.pending_consumption,
			last_regen_at = excluded.last_regen_at,
			seed_derived = excluded.seed_derived,
			dev_locked = excluded.dev_locked,
			seed_locked = excluded.seed_locked,
			updated_at = excluded.updated_at
		RETURNING address
	`, m.Address, m.Balance, m.Locked, m.SeedGranted, m.PendingConsumption, m.LastRegenAt,
		m.SeedDerived, m.DevLocked, m.SeedLocked, m.CreatedAt, m.UpdatedAt,
	).Scan(ctx, &addr)
	if isNoRows(err) {
		// Wallets already exist; the wallet insert below reports it.
		return nil
	}
	return err
}

// ==================== Action Store ====================

func (s *Store) RecordActions(ctx context.Context, records []*action.Record) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]actionModel, len(records))
	for i, r := range records {
		models[i] = toActionModel(r)
	}
	_, err := s.sdb.NewInsert(&models).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) QueryActions(ctx context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error) {
	var models []actionModel
	q := s.sdb.NewSelect(&models)

	if addr != types.ZeroAddress {
		q = q.Where("address = ?", addrText(addr))
	}
	if !opts.Start.IsZero() {
		q = q.Where("timestamp >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("timestamp < ?", opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*action.Record, len(models))
	for i := range models {
		r, err := fromActionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) PurgeActions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*actionModel)(nil)).
		Where("timestamp < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Regeneration Store ====================

func (s *Store) RecordRegeneration(ctx context.Context, e *regen.Event) error {
	_, err := s.sdb.NewInsert(toRegenerationModel(e)).Exec(ctx)
	return err
}

func (s *Store) ListRegenerations(ctx context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error) {
	var models []regenerationModel
	q := s.sdb.NewSelect(&models)

	if addr != types.ZeroAddress {
		q = q.Where("address = ?", addrText(addr))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*regen.Event, len(models))
	for i := range models {
		e, err := fromRegenerationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Transfer Store ====================

func (s *Store) RecordTransfer(ctx context.Context, r *transfer.Record) error {
	_, err := s.sdb.NewInsert(toTransferModel(r)).Exec(ctx)
	return err
}

func (s *Store) ListTransfers(ctx context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error) {
	var models []transferModel
	q := s.sdb.NewSelect(&models)

	if addr != types.ZeroAddress {
		a := addrText(addr)
		q = q.Where("(from_address = ? OR to_address = ?)", a, a)
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*transfer.Record, len(models))
	for i := range models {
		r, err := fromTransferModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
