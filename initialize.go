package tokenledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/types"
)

// Initialize stores the wallet configuration. It succeeds exactly once per
// store; later calls fail with ErrAlreadyInitialized. The pledge fund comes
// from WithPledgeFund. A configured genesis supply is minted, unlocked, to
// the mint authority in the same store write as the wallets.
func (l *Ledger) Initialize(ctx context.Context, mintAuthority, founder, devPool, daoTreasury types.Address) (*account.Wallets, error) {
	if err := l.validateConfig(); err != nil {
		return nil, err
	}

	w := &account.Wallets{
		MintAuthority: mintAuthority,
		Founder:       founder,
		DevPool:       devPool,
		DAOTreasury:   daoTreasury,
		PledgeFund:    l.pledgeFund,
	}
	if err := validateWallets(w); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallets.Load() != nil {
		return nil, ErrAlreadyInitialized
	}

	w.InitializedAt = l.now().UTC()

	// No operation runs before Initialize, so the genesis record starts from zero.
	var genesis []*account.Account
	if l.genesisSupply.IsPositive() {
		a := account.New(w.MintAuthority)
		a.Entity = types.NewEntity(w.InitializedAt)
		a.Balance = l.genesisSupply
		genesis = append(genesis, a)
	}

	if err := l.store.InitWallets(ctx, w, genesis); err != nil {
		if !errors.Is(err, ErrAlreadyInitialized) {
			l.logger.Error("failed to initialize ledger",
				"error", err,
				"mint_authority", w.MintAuthority.Hex(),
				"genesis_supply", l.genesisSupply.String(),
			)
		}
		return nil, err
	}
	l.wallets.Store(w)

	l.logger.Info("ledger initialized",
		"mint_authority", w.MintAuthority.Hex(),
		"founder", w.Founder.Hex(),
		"dev_pool", w.DevPool.Hex(),
		"dao_treasury", w.DAOTreasury.Hex(),
		"pledge_fund", w.PledgeFund.Hex(),
		"genesis_supply", l.genesisSupply.String(),
	)

	l.plugins.EmitInitialized(ctx, w)

	out := *w
	return &out, nil
}

func validateWallets(w *account.Wallets) error {
	for _, r := range w.Roles() {
		if r.Address == types.ZeroAddress {
			return fmt.Errorf("%w: %w", ErrInvalidAddress, ValidationError{Field: r.Name, Message: "must be a non-zero address"})
		}
	}
	for _, r := range w.Roles() {
		if r.Name != "pledge_fund" && r.Address == w.PledgeFund {
			return fmt.Errorf("%w: %w", ErrInvalidAddress, ValidationError{Field: "pledge_fund", Message: "must differ from " + r.Name})
		}
	}
	return nil
}
