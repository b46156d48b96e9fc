// Package postgres implements the ledger store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tokenledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tokenledger/postgres: migration failed: %w", err)
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
	err := s.pg.NewSelect(m).
		Where("address = $1", addrText(addr)).
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
	q := s.pg.NewSelect(&models)

	if opts.PendingOnly {
		q = q.Where("pending_consumption > 0")
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

// SaveAccounts upserts every record with a single multi-row statement, so
// either all of them land or none do.
func (s *Store) SaveAccounts(ctx context.Context, accounts []*account.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	models := make([]accountModel, len(accounts))
	for i, a := range accounts {
		models[i] = toAccountModel(a)
	}
	_, err := s.pg.NewInsert(&models).
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
	err := s.pg.NewSelect(m).
		Where("id = $1", walletsRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokenledger.ErrNotFound
		}
		return nil, err
	}
	return fromWalletsModel(m)
}

// InitWallets inserts the wallet row. With genesis accounts it runs as one
// statement whose account upsert only fires when the wallet row is new.
func (s *Store) InitWallets(ctx context.Context, w *account.Wallets, genesis []*account.Account) error {
	if len(genesis) > 0 {
		return s.initWithGenesis(ctx, w, genesis)
	}

	res, err := s.pg.NewInsert(toWalletsModel(w)).
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

// genesisColumns pairs each ledger_accounts column with its parameter cast.
var genesisColumns = []struct{ name, cast string }{
	{"address", "text"},
	{"balance", "numeric"},
	{"locked", "numeric"},
	{"seed_granted", "boolean"},
	{"pending_consumption", "numeric"},
	{"last_regen_at", "timestamptz"},
	{"seed_derived", "numeric"},
	{"dev_locked", "numeric"},
	{"seed_locked", "numeric"},
	{"created_at", "timestamptz"},
	{"updated_at", "timestamptz"},
}

func (s *Store) initWithGenesis(ctx context.Context, w *account.Wallets, genesis []*account.Account) error {
	wm := toWalletsModel(w)
	args := []any{wm.ID, wm.MintAuthority, wm.Founder, wm.DevPool, wm.DAOTreasury, wm.PledgeFund, wm.InitializedAt}

	names := make([]string, len(genesisColumns))
	updates := make([]string, 0, len(genesisColumns)-1)
	for i, c := range genesisColumns {
		names[i] = c.name
		if c.name != "address" && c.name != "created_at" {
			updates = append(updates, c.name+" = EXCLUDED."+c.name)
		}
	}

	rows := make([]string, len(genesis))
	for i, a := range genesis {
		m := toAccountModel(a)
		values := []any{
			m.Address, m.Balance, m.Locked, m.SeedGranted, m.PendingConsumption, m.LastRegenAt,
			m.SeedDerived, m.DevLocked, m.SeedLocked, m.CreatedAt, m.UpdatedAt,
		}
		params := make([]string, len(values))
		for j, v := range values {
			args = append(args, v)
			params[j] = fmt.Sprintf("$%d::%s", len(args), genesisColumns[j].cast)
		}
		rows[i] = "(" + strings.Join(params, ", ") + ")"
	}

	query := `
WITH w AS (
    INSERT INTO ledger_wallets (id, mint_authority, founder, dev_pool, dao_treasury, pledge_fund, initialized_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (id) DO NOTHING
    RETURNING id
), a AS (
    INSERT INTO ledger_accounts (` + strings.Join(names, ", ") + `)
    SELECT v.* FROM w, (VALUES ` + strings.Join(rows, ", ") + `) AS v
    ON CONFLICT (address) DO UPDATE SET ` + strings.Join(updates, ", ") + `
)
SELECT COUNT(*) FROM w`

	var inserted int64
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &inserted); err != nil {
		return err
	}
	if inserted == 0 {
		return tokenledger.ErrAlreadyInitialized
	}
	return nil
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
	_, err := s.pg.NewInsert(&models).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) QueryActions(ctx context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error) {
	var models []actionModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if addr != types.ZeroAddress {
		argIdx++
		q = q.Where(fmt.Sprintf("address = $%d", argIdx), addrText(addr))
	}
	if !opts.Start.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("timestamp >= $%d", argIdx), opts.Start)
	}
	if !opts.End.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("timestamp < $%d", argIdx), opts.End)
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
	res, err := s.pg.NewDelete((*actionModel)(nil)).
		Where("timestamp < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Regeneration Store ====================

func (s *Store) RecordRegeneration(ctx context.Context, e *regen.Event) error {
	_, err := s.pg.NewInsert(toRegenerationModel(e)).Exec(ctx)
	return err
}

func (s *Store) ListRegenerations(ctx context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error) {
	var models []regenerationModel
	q := s.pg.NewSelect(&models)

	if addr != types.ZeroAddress {
		q = q.Where("address = $1", addrText(addr))
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
	_, err := s.pg.NewInsert(toTransferModel(r)).Exec(ctx)
	return err
}

func (s *Store) ListTransfers(ctx context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error) {
	var models []transferModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if addr != types.ZeroAddress {
		argIdx++
		q = q.Where(fmt.Sprintf("(from_address = $%d OR to_address = $%d)", argIdx, argIdx), addrText(addr))
	}
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
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
