package tokenledger

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Account returns the record for addr. Addresses never seen before yield
// the implicit zero record.
func (l *Ledger) Account(ctx context.Context, addr types.Address) (*account.Account, error) {
	a, err := l.store.GetAccount(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return account.New(addr), nil
	}
	return a, err
}

// Accounts lists stored accounts ordered by address.
func (l *Ledger) Accounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	return l.store.ListAccounts(ctx, opts)
}

// Balance returns the total balance of addr.
func (l *Ledger) Balance(ctx context.Context, addr types.Address) (types.Amount, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return types.Zero(), err
	}
	return a.Balance, nil
}

// LockedBalance returns the non-transferable part of addr's balance.
func (l *Ledger) LockedBalance(ctx context.Context, addr types.Address) (types.Amount, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return types.Zero(), err
	}
	return a.Locked, nil
}

// Transferable returns total minus locked for addr.
func (l *Ledger) Transferable(ctx context.Context, addr types.Address) (types.Amount, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return types.Zero(), err
	}
	return a.Transferable(), nil
}

// HasReceivedSeed reports whether addr has had its seed grant.
func (l *Ledger) HasReceivedSeed(ctx context.Context, addr types.Address) (bool, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return false, err
	}
	return a.SeedGranted, nil
}

// PendingConsumption returns consumption recorded for addr and not yet regenerated.
func (l *Ledger) PendingConsumption(ctx context.Context, addr types.Address) (types.Amount, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return types.Zero(), err
	}
	return a.PendingConsumption, nil
}

// NextRegenAt returns when addr may next regenerate. The zero time means now.
func (l *Ledger) NextRegenAt(ctx context.Context, addr types.Address) (time.Time, error) {
	a, err := l.Account(ctx, addr)
	if err != nil {
		return time.Time{}, err
	}
	return a.NextRegenAt(l.params.Interval), nil
}

// Wallets returns the configuration stored by Initialize.
func (l *Ledger) Wallets(ctx context.Context) (*account.Wallets, error) {
	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	out := *w
	return &out, nil
}

// Actions returns journaled action records for addr, newest first.
// Records still in the buffer are not included until flushed.
func (l *Ledger) Actions(ctx context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error) {
	return l.store.QueryActions(ctx, addr, opts)
}

// Regenerations returns regeneration events for addr, newest first.
func (l *Ledger) Regenerations(ctx context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error) {
	return l.store.ListRegenerations(ctx, addr, opts)
}

// Transfers returns movements into or out of addr, newest first.
func (l *Ledger) Transfers(ctx context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error) {
	return l.store.ListTransfers(ctx, addr, opts)
}
