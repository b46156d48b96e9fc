package tokenledger

import (
	"context"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// SpendPledge pays amount out of the pledge fund to to. Only balance that is
// not flagged seed-derived may be spent; anything more fails with
// ErrInsufficientUnlockedPledgeFunds. The seed-derived credit is never
// reduced. The caller must be the mint authority or the pledge fund itself.
func (l *Ledger) SpendPledge(ctx context.Context, to types.Address, amount types.Amount, memo string) (*transfer.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := authorize(ctx, w.MintAuthority, w.PledgeFund); err != nil {
		return nil, err
	}

	return l.move(ctx, w, w.PledgeFund, to, amount, transfer.KindPledgeSpend, memo)
}

// PledgeStatus reports the pledge fund's balance and how much of it is spendable.
func (l *Ledger) PledgeStatus(ctx context.Context) (*account.PledgeStatus, error) {
	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	a, err := l.Account(ctx, w.PledgeFund)
	if err != nil {
		return nil, err
	}
	return &account.PledgeStatus{
		Address:     a.Address,
		Balance:     a.Balance,
		SeedDerived: a.SeedDerived,
		Spendable:   a.Unflagged().Min(a.Transferable()),
	}, nil
}
