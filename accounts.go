package tokenledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/types"
)

// txn stages account mutations for one operation. Accounts are cloned on
// first load and every helper checks its invariant before changing the
// clone, so an error at any step leaves the store untouched. commit
// writes all touched accounts in one atomic SaveAccounts call.
type txn struct {
	ctx     context.Context
	store   store.Store
	now     time.Time
	touched map[types.Address]*account.Account
	order   []types.Address
}

func (l *Ledger) begin(ctx context.Context) *txn {
	return &txn{
		ctx:     ctx,
		store:   l.store,
		now:     l.now().UTC(),
		touched: make(map[types.Address]*account.Account),
	}
}

// load returns the staged account for addr, creating the implicit zero
// record when the store has none.
func (t *txn) load(addr types.Address) (*account.Account, error) {
	if a, ok := t.touched[addr]; ok {
		return a, nil
	}

	var a *account.Account
	stored, err := t.store.GetAccount(t.ctx, addr)
	switch {
	case err == nil:
		a = stored.Clone()
	case errors.Is(err, ErrNotFound):
		a = account.New(addr)
	default:
		return nil, fmt.Errorf("tokenledger: load account %s: %w", addr.Hex(), err)
	}

	t.touched[addr] = a
	t.order = append(t.order, addr)
	return a, nil
}

// ──────────────────────────────────────────────────
// Account store contract
// ──────────────────────────────────────────────────

// credit adds to the total balance.
func (t *txn) credit(addr types.Address, amount types.Amount) error {
	a, err := t.load(addr)
	if err != nil {
		return err
	}
	sum, overflow := a.Balance.Add(amount)
	if overflow {
		return fmt.Errorf("%w: credit of %s overflows balance of %s", ErrInvariantViolation, amount, addr.Hex())
	}
	a.Balance = sum
	return nil
}

// debit removes from the total balance. It never reaches into the locked
// portion or the pledge fund's seed-derived portion.
func (t *txn) debit(addr types.Address, amount types.Amount) error {
	a, err := t.load(addr)
	if err != nil {
		return err
	}
	rest, underflow := a.Balance.Sub(amount)
	if underflow {
		return fmt.Errorf("%w: debit of %s from %s holding %s", ErrInsufficientBalance, amount, addr.Hex(), a.Balance)
	}
	if rest.LessThan(a.Locked) || rest.LessThan(a.SeedDerived) {
		return fmt.Errorf("%w: debit of %s from %s would cut into flagged balance", ErrInvariantViolation, amount, addr.Hex())
	}
	a.Balance = rest
	return nil
}

// lock moves part of the balance into the locked portion.
func (t *txn) lock(addr types.Address, amount types.Amount) error {
	a, err := t.load(addr)
	if err != nil {
		return err
	}
	locked, overflow := a.Locked.Add(amount)
	if overflow || locked.GreaterThan(a.Balance) {
		return fmt.Errorf("%w: lock of %s exceeds balance of %s", ErrInvariantViolation, amount, addr.Hex())
	}
	a.Locked = locked
	return nil
}

// unlock releases part of the locked portion.
func (t *txn) unlock(addr types.Address, amount types.Amount) error {
	a, err := t.load(addr)
	if err != nil {
		return err
	}
	locked, underflow := a.Locked.Sub(amount)
	if underflow {
		return fmt.Errorf("%w: unlock of %s exceeds locked balance of %s", ErrInvariantViolation, amount, addr.Hex())
	}
	a.Locked = locked
	return nil
}

// flag marks part of the balance as seed-derived.
func (t *txn) flag(addr types.Address, amount types.Amount) error {
	a, err := t.load(addr)
	if err != nil {
		return err
	}
	flagged, overflow := a.SeedDerived.Add(amount)
	if overflow || flagged.GreaterThan(a.Balance) {
		return fmt.Errorf("%w: seed-derived credit of %s exceeds balance of %s", ErrInvariantViolation, amount, addr.Hex())
	}
	a.SeedDerived = flagged
	return nil
}

// commit re-checks every staged account and persists them together.
func (t *txn) commit() error {
	accounts := make([]*account.Account, 0, len(t.order))
	for _, addr := range t.order {
		a := t.touched[addr]
		if err := checkAccount(a); err != nil {
			return err
		}
		if a.Entity.IsZero() {
			a.Entity = types.NewEntity(t.now)
		} else {
			a.Touch(t.now)
		}
		accounts = append(accounts, a)
	}

	if len(accounts) == 0 {
		return nil
	}
	if err := t.store.SaveAccounts(t.ctx, accounts); err != nil {
		return fmt.Errorf("tokenledger: commit %d accounts: %w", len(accounts), err)
	}
	return nil
}

// checkAccount verifies the per-account invariants.
func checkAccount(a *account.Account) error {
	switch {
	case a.Locked.GreaterThan(a.Balance):
		return fmt.Errorf("%w: %s locked %s above balance %s", ErrInvariantViolation, a.Address.Hex(), a.Locked, a.Balance)
	case a.SeedDerived.GreaterThan(a.Balance):
		return fmt.Errorf("%w: %s seed-derived %s above balance %s", ErrInvariantViolation, a.Address.Hex(), a.SeedDerived, a.Balance)
	case a.DevLocked.GreaterThan(a.Locked):
		return fmt.Errorf("%w: %s dev-locked %s above locked %s", ErrInvariantViolation, a.Address.Hex(), a.DevLocked, a.Locked)
	case a.SeedLocked.GreaterThan(a.Locked.SaturatingSub(a.DevLocked)):
		return fmt.Errorf("%w: %s seed-locked %s above non-dev locked %s", ErrInvariantViolation, a.Address.Hex(), a.SeedLocked, a.Locked.SaturatingSub(a.DevLocked))
	}
	return nil
}
