package store

import (
	"context"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Store is the unified storage interface for all ledger state.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// so drivers have one checklist.
//
// Journal queries treat the zero address as "all accounts".
type Store interface {
	// Account methods
	GetAccount(ctx context.Context, addr types.Address) (*account.Account, error)
	ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error)
	SaveAccounts(ctx context.Context, accounts []*account.Account) error

	// Wallet configuration
	GetWallets(ctx context.Context) (*account.Wallets, error)
	InitWallets(ctx context.Context, w *account.Wallets, genesis []*account.Account) error

	// Action journal
	RecordActions(ctx context.Context, records []*action.Record) error
	QueryActions(ctx context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error)
	PurgeActions(ctx context.Context, before time.Time) (int64, error)

	// Regeneration journal
	RecordRegeneration(ctx context.Context, e *regen.Event) error
	ListRegenerations(ctx context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error)

	// Transfer journal
	RecordTransfer(ctx context.Context, r *transfer.Record) error
	ListTransfers(ctx context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ account.Store  = Store(nil)
	_ action.Store   = Store(nil)
	_ regen.Store    = Store(nil)
	_ transfer.Store = Store(nil)
)
