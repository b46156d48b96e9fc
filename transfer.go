package tokenledger

import (
	"context"
	"fmt"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// ──────────────────────────────────────────────────
// Transfer guard
// ──────────────────────────────────────────────────

// Transfer moves amount from the caller to to. It fails with
// ErrCannotTransferLocked when amount exceeds the caller's unlocked balance.
// Lock status of both accounts is unchanged.
func (l *Ledger) Transfer(ctx context.Context, to types.Address, amount types.Amount) (*transfer.Record, error) {
	return l.send(ctx, to, amount, transfer.KindTransfer, "")
}

// Gift is a guarded transfer that is reported to OnGifted listeners.
func (l *Ledger) Gift(ctx context.Context, to types.Address, amount types.Amount, memo string) (*transfer.Record, error) {
	return l.send(ctx, to, amount, transfer.KindGift, memo)
}

func (l *Ledger) send(ctx context.Context, to types.Address, amount types.Amount, kind transfer.Kind, memo string) (*transfer.Record, error) {
	from, ok := CallerFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no caller in context", ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}

	return l.move(ctx, w, from, to, amount, kind, memo)
}

// ──────────────────────────────────────────────────
// Developer pool grants
// ──────────────────────────────────────────────────

// GrantLockedDevTokens moves amount out of the developer pool's unlocked
// balance to to and locks it there. Only the mint authority may call it.
func (l *Ledger) GrantLockedDevTokens(ctx context.Context, to types.Address, amount types.Amount) (*transfer.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := authorize(ctx, w.MintAuthority); err != nil {
		return nil, err
	}

	return l.move(ctx, w, w.DevPool, to, amount, transfer.KindDevGrant, "")
}

// UnlockDevTokens releases every developer-grant lock held by addr and
// returns the released amount. Seed and regeneration locks stay in place.
// Only the mint authority may call it.
func (l *Ledger) UnlockDevTokens(ctx context.Context, addr types.Address) (types.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return types.Zero(), err
	}
	if _, err := authorize(ctx, w.MintAuthority); err != nil {
		return types.Zero(), err
	}

	t := l.begin(ctx)
	a, err := t.load(addr)
	if err != nil {
		return types.Zero(), err
	}
	amount := a.DevLocked
	if amount.IsZero() {
		return types.Zero(), fmt.Errorf("%w: %s holds no developer-grant lock", ErrInvalidAmount, addr.Hex())
	}
	if err := t.unlock(addr, amount); err != nil {
		return types.Zero(), err
	}
	a.DevLocked = types.Zero()

	if err := t.commit(); err != nil {
		return types.Zero(), err
	}

	l.logger.Debug("developer tokens unlocked",
		"address", addr.Hex(),
		"amount", amount.String(),
	)

	l.plugins.EmitLockedTokensUnlocked(ctx, addr, amount)
	return amount, nil
}

// move applies one guarded balance movement. The caller holds l.mu.
func (l *Ledger) move(ctx context.Context, w *account.Wallets, from, to types.Address, amount types.Amount, kind transfer.Kind, memo string) (*transfer.Record, error) {
	if to == types.ZeroAddress {
		return nil, fmt.Errorf("%w: transfer recipient", ErrInvalidAddress)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}

	t := l.begin(ctx)
	src, err := t.load(from)
	if err != nil {
		return nil, err
	}

	pledgeGate := func() error {
		if from == w.PledgeFund && amount.GreaterThan(src.Unflagged()) {
			return fmt.Errorf("%w: requested %s, unflagged %s", ErrInsufficientUnlockedPledgeFunds, amount, src.Unflagged())
		}
		return nil
	}
	lockGate := func() error {
		if amount.GreaterThan(src.Transferable()) {
			return fmt.Errorf("%w: requested %s, unlocked %s", ErrCannotTransferLocked, amount, src.Transferable())
		}
		return nil
	}

	gates := []func() error{lockGate, pledgeGate}
	if kind == transfer.KindPledgeSpend {
		gates = []func() error{pledgeGate, lockGate}
	}
	for _, gate := range gates {
		if err := gate(); err != nil {
			return nil, err
		}
	}

	if err := t.debit(from, amount); err != nil {
		return nil, err
	}
	if err := t.credit(to, amount); err != nil {
		return nil, err
	}

	if kind == transfer.KindDevGrant {
		if err := t.lock(to, amount); err != nil {
			return nil, err
		}
		dst, err := t.load(to)
		if err != nil {
			return nil, err
		}
		devLocked, overflow := dst.DevLocked.Add(amount)
		if overflow {
			return nil, fmt.Errorf("%w: developer lock of %s overflows", ErrInvariantViolation, to.Hex())
		}
		dst.DevLocked = devLocked
	}

	if err := t.commit(); err != nil {
		return nil, err
	}

	rec := &transfer.Record{
		ID:        id.NewTransferID(),
		From:      from,
		To:        to,
		Amount:    amount,
		Kind:      kind,
		Memo:      memo,
		Timestamp: t.now,
	}

	if err := l.store.RecordTransfer(ctx, rec); err != nil {
		l.logger.Error("failed to journal transfer",
			"error", err,
			"transfer_id", rec.ID.String(),
		)
	}

	l.logger.Debug("transferred",
		"kind", string(kind),
		"from", from.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
	)

	l.plugins.EmitTransferred(ctx, rec)
	return rec, nil
}
