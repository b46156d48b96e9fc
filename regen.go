package tokenledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/types"
)

// regenRequest describes one regeneration attempt.
type regenRequest struct {
	caller types.Address
	addr   types.Address
	amount types.Amount

	// fullPending regenerates whatever is pending when the account is loaded.
	fullPending bool
	self        bool
}

// ──────────────────────────────────────────────────
// Regeneration engine
// ──────────────────────────────────────────────────

// Regenerate mints amount to addr and locks all of it, and mints the
// configured pool shares to the pledge fund, DAO treasury and founder pool.
// A seed grant that is still locked is converted into the new lock rather
// than added to it.
// Only the mint authority may call it.
//
// Checks run in this order: caller, zero amount, interval, pending cap.
func (l *Ledger) Regenerate(ctx context.Context, addr types.Address, amount types.Amount) (*regen.Event, error) {
	if addr == types.ZeroAddress {
		return nil, fmt.Errorf("%w: regeneration target", ErrInvalidAddress)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	caller, err := authorize(ctx, w.MintAuthority)
	if err != nil {
		return nil, err
	}

	return l.regenerate(ctx, w, regenRequest{caller: caller, addr: addr, amount: amount})
}

// RegenerateSelf regenerates the caller's entire pending consumption.
func (l *Ledger) RegenerateSelf(ctx context.Context) (*regen.Event, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: no caller in context", ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}

	return l.regenerate(ctx, w, regenRequest{caller: caller, addr: caller, fullPending: true, self: true})
}

// RegenerateAllEligible regenerates the full pending consumption of every
// account whose interval has elapsed. Each account commits on its own.
// Failures are collected in a MultiError; ErrNothingEligible is returned
// when no account qualified.
func (l *Ledger) RegenerateAllEligible(ctx context.Context) ([]*regen.Event, error) {
	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	caller, err := authorize(ctx, w.MintAuthority)
	if err != nil {
		return nil, err
	}

	candidates, err := l.eligibleCandidates(ctx)
	if err != nil {
		return nil, err
	}

	var (
		events []*regen.Event
		errs   MultiError
	)
	for _, addr := range candidates {
		l.mu.Lock()
		e, err := l.regenerate(ctx, w, regenRequest{caller: caller, addr: addr, fullPending: true})
		l.mu.Unlock()

		switch {
		case err == nil:
			events = append(events, e)
		case errors.Is(err, ErrNotEligible), errors.Is(err, ErrInvalidAmount):
			// Changed since listing.
		default:
			errs.Add(fmt.Errorf("regenerate %s: %w", addr.Hex(), err))
		}
	}

	l.logger.Info("batch regeneration finished",
		"candidates", len(candidates),
		"regenerated", len(events),
		"failed", len(errs.Errors),
	)

	if errs.HasErrors() {
		return events, errs
	}
	if len(events) == 0 {
		return nil, ErrNothingEligible
	}
	return events, nil
}

// eligibleCandidates lists every account with pending consumption whose
// interval has elapsed. Offset pages are only stable under l.mu, and the
// list is collected up front since regenerating drops accounts out of it.
func (l *Ledger) eligibleCandidates(ctx context.Context) ([]types.Address, error) {
	const pageSize = 200

	l.mu.Lock()
	defer l.mu.Unlock()

	var candidates []types.Address
	now := l.now()
	for offset := 0; ; offset += pageSize {
		page, err := l.store.ListAccounts(ctx, account.ListOpts{PendingOnly: true, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("tokenledger: list pending accounts: %w", err)
		}
		for _, a := range page {
			if a.EligibleAt(now, l.params.Interval) {
				candidates = append(candidates, a.Address)
			}
		}
		if len(page) < pageSize {
			return candidates, nil
		}
	}
}

// regenerate applies one regeneration. The caller holds l.mu.
func (l *Ledger) regenerate(ctx context.Context, w *account.Wallets, req regenRequest) (*regen.Event, error) {
	t := l.begin(ctx)
	a, err := t.load(req.addr)
	if err != nil {
		return nil, err
	}

	requested := req.amount
	if req.fullPending {
		requested = a.PendingConsumption
	}
	if requested.IsZero() {
		return nil, fmt.Errorf("%w: regeneration amount must be positive", ErrInvalidAmount)
	}

	if !a.EligibleAt(t.now, l.params.Interval) {
		return nil, fmt.Errorf("%w: %s may regenerate at %s", ErrNotEligible,
			req.addr.Hex(), a.NextRegenAt(l.params.Interval).Format(time.RFC3339))
	}

	amount := requested
	if l.params.CapToPending {
		amount = amount.Min(a.PendingConsumption)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: no pending consumption for %s", ErrInvalidAmount, req.addr.Hex())
	}

	shares, err := l.split.Apply(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	seedDerived := a.SeedGranted

	if err := t.credit(req.addr, shares.User); err != nil {
		return nil, err
	}
	// Consumption drawn from the seed lock is replaced, not stacked.
	converted := shares.User.Min(a.SeedLocked)
	if err := t.unlock(req.addr, converted); err != nil {
		return nil, err
	}
	a.SeedLocked = a.SeedLocked.SaturatingSub(converted)
	if err := t.lock(req.addr, shares.User); err != nil {
		return nil, err
	}

	pools := []struct {
		addr  types.Address
		share types.Amount
	}{
		{w.PledgeFund, shares.Pledge},
		{w.DAOTreasury, shares.DAO},
		{w.Founder, shares.Founder},
	}
	for _, p := range pools {
		if p.share.IsZero() {
			continue
		}
		if err := t.credit(p.addr, p.share); err != nil {
			return nil, err
		}
	}

	flagged := types.Zero()
	if seedDerived && shares.Pledge.IsPositive() {
		if err := t.flag(w.PledgeFund, shares.Pledge); err != nil {
			return nil, err
		}
		flagged = shares.Pledge
	}

	a.PendingConsumption = a.PendingConsumption.SaturatingSub(amount)
	at := t.now
	a.LastRegenAt = &at

	if err := t.commit(); err != nil {
		return nil, err
	}

	e := &regen.Event{
		ID:          id.NewRegenerationID(),
		Address:     req.addr,
		Caller:      req.caller,
		Requested:   requested,
		Amount:      amount,
		Shares:      shares,
		SeedDerived: flagged,
		SelfService: req.self,
		Timestamp:   t.now,
	}

	if err := l.store.RecordRegeneration(ctx, e); err != nil {
		l.logger.Error("failed to journal regeneration",
			"error", err,
			"regeneration_id", e.ID.String(),
		)
	}

	l.logger.Debug("regenerated",
		"address", req.addr.Hex(),
		"amount", amount.String(),
		"pledge", shares.Pledge.String(),
		"dao", shares.DAO.String(),
		"founder", shares.Founder.String(),
		"seed_derived", flagged.String(),
		"seed_lock_converted", converted.String(),
	)

	l.plugins.EmitRegenerated(ctx, e)
	return e, nil
}
