// Package memory provides an in-memory store for tests and single-process use.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Account storage
	accounts map[types.Address]*account.Account
	wallets  *account.Wallets

	// Journals
	actions   []*action.Record
	regens    []*regen.Event
	transfers []*transfer.Record
}

func New() *Store {
	return &Store{
		accounts: make(map[types.Address]*account.Account),
	}
}

// ──────────────────────────────────────────────────
// Account methods
// ──────────────────────────────────────────────────

func (s *Store) GetAccount(_ context.Context, addr types.Address) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tokenledger.ErrStoreClosed
	}
	if a, ok := s.accounts[addr]; ok {
		return a.Clone(), nil
	}
	return nil, tokenledger.ErrNotFound
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tokenledger.ErrStoreClosed
	}

	result := make([]*account.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if opts.PendingOnly && a.PendingConsumption.IsZero() {
			continue
		}
		result = append(result, a.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Address[:], result[j].Address[:]) < 0
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// SaveAccounts replaces all given records under one lock.
func (s *Store) SaveAccounts(_ context.Context, accounts []*account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	for _, a := range accounts {
		s.accounts[a.Address] = a.Clone()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Wallet configuration
// ──────────────────────────────────────────────────

func (s *Store) GetWallets(_ context.Context) (*account.Wallets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tokenledger.ErrStoreClosed
	}
	if s.wallets == nil {
		return nil, tokenledger.ErrNotFound
	}
	w := *s.wallets
	return &w, nil
}

func (s *Store) InitWallets(_ context.Context, w *account.Wallets, genesis []*account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	if s.wallets != nil {
		return tokenledger.ErrAlreadyInitialized
	}
	cp := *w
	s.wallets = &cp
	for _, a := range genesis {
		s.accounts[a.Address] = a.Clone()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Action journal
// ──────────────────────────────────────────────────

func (s *Store) RecordActions(_ context.Context, records []*action.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	for _, r := range records {
		cp := *r
		s.actions = append(s.actions, &cp)
	}
	return nil
}

func (s *Store) QueryActions(_ context.Context, addr types.Address, opts action.QueryOpts) ([]*action.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*action.Record, 0)
	for i := len(s.actions) - 1; i >= 0; i-- {
		r := s.actions[i]
		if addr != types.ZeroAddress && r.Address != addr {
			continue
		}
		if !opts.Start.IsZero() && r.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !r.Timestamp.Before(opts.End) {
			continue
		}
		result = append(result, r)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) PurgeActions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.actions[:0]
	var purged int64
	for _, r := range s.actions {
		if r.Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	s.actions = kept
	return purged, nil
}

// ──────────────────────────────────────────────────
// Regeneration journal
// ──────────────────────────────────────────────────

func (s *Store) RecordRegeneration(_ context.Context, e *regen.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	cp := *e
	s.regens = append(s.regens, &cp)
	return nil
}

func (s *Store) ListRegenerations(_ context.Context, addr types.Address, opts regen.ListOpts) ([]*regen.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*regen.Event, 0)
	for i := len(s.regens) - 1; i >= 0; i-- {
		if addr == types.ZeroAddress || s.regens[i].Address == addr {
			result = append(result, s.regens[i])
		}
	}
	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Transfer journal
// ──────────────────────────────────────────────────

func (s *Store) RecordTransfer(_ context.Context, r *transfer.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	cp := *r
	s.transfers = append(s.transfers, &cp)
	return nil
}

func (s *Store) ListTransfers(_ context.Context, addr types.Address, opts transfer.ListOpts) ([]*transfer.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*transfer.Record, 0)
	for i := len(s.transfers) - 1; i >= 0; i-- {
		r := s.transfers[i]
		if addr != types.ZeroAddress && r.From != addr && r.To != addr {
			continue
		}
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		result = append(result, r)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tokenledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// page applies offset and limit. A zero limit means no limit.
func page[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
