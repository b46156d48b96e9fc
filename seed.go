package tokenledger

import (
	"context"
	"fmt"

	"github.com/xraph/tokenledger/types"
)

// GrantSeed credits the one-time seed amount to addr and locks all of it.
// A second grant for the same address fails with ErrAlreadyGranted and
// changes nothing.
func (l *Ledger) GrantSeed(ctx context.Context, addr types.Address) error {
	if addr == types.ZeroAddress {
		return fmt.Errorf("%w: seed recipient", ErrInvalidAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.requireWallets(ctx); err != nil {
		return err
	}

	t := l.begin(ctx)
	a, err := t.load(addr)
	if err != nil {
		return err
	}
	if a.SeedGranted {
		return fmt.Errorf("%w: %s", ErrAlreadyGranted, addr.Hex())
	}

	if err := t.credit(addr, l.seedAmount); err != nil {
		return err
	}
	if err := t.lock(addr, l.seedAmount); err != nil {
		return err
	}
	a.SeedGranted = true
	a.SeedLocked = l.seedAmount

	if err := t.commit(); err != nil {
		return err
	}

	l.logger.Debug("seed granted",
		"address", addr.Hex(),
		"amount", l.seedAmount.String(),
	)

	l.plugins.EmitSeedGranted(ctx, addr, l.seedAmount)
	return nil
}
