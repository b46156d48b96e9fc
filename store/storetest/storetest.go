// Package storetest holds the behavior every store driver must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Factory returns a fresh, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

var (
	alice = types.MustParseAddress("0x00000000000000000000000000000000000000a1")
	bob   = types.MustParseAddress("0x00000000000000000000000000000000000000b2")
	carol = types.MustParseAddress("0x00000000000000000000000000000000000000c3")
)

// Run exercises newStore against the shared store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("AccountRoundTrip", func(t *testing.T) { testAccountRoundTrip(t, newStore(t)) })
	t.Run("SaveAccountsUpserts", func(t *testing.T) { testSaveAccountsUpserts(t, newStore(t)) })
	t.Run("ListAccounts", func(t *testing.T) { testListAccounts(t, newStore(t)) })
	t.Run("Wallets", func(t *testing.T) { testWallets(t, newStore(t)) })
	t.Run("WalletsWithGenesis", func(t *testing.T) { testWalletsWithGenesis(t, newStore(t)) })
	t.Run("Actions", func(t *testing.T) { testActions(t, newStore(t)) })
	t.Run("Regenerations", func(t *testing.T) { testRegenerations(t, newStore(t)) })
	t.Run("Transfers", func(t *testing.T) { testTransfers(t, newStore(t)) })
}

func stamp() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func testAccountRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetAccount(ctx, alice)
	require.ErrorIs(t, err, tokenledger.ErrNotFound)

	last := stamp()
	in := &account.Account{
		Entity:             types.NewEntity(stamp()),
		Address:            alice,
		Balance:            types.MustParse("3.5"),
		Locked:             types.Tokens(2),
		SeedGranted:        true,
		PendingConsumption: types.MustParse("0.25"),
		LastRegenAt:        &last,
		SeedDerived:        types.Tokens(1),
		DevLocked:          types.MustParse("0.1"),
		SeedLocked:         types.MustParse("0.2"),
	}
	require.NoError(t, s.SaveAccounts(ctx, []*account.Account{in}))

	out, err := s.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, out.Address)
	assert.True(t, in.Balance.Equal(out.Balance), "balance %s", out.Balance)
	assert.True(t, in.Locked.Equal(out.Locked), "locked %s", out.Locked)
	assert.True(t, out.SeedGranted)
	assert.True(t, in.PendingConsumption.Equal(out.PendingConsumption))
	assert.True(t, in.SeedDerived.Equal(out.SeedDerived))
	assert.True(t, in.DevLocked.Equal(out.DevLocked))
	assert.True(t, in.SeedLocked.Equal(out.SeedLocked))
	require.NotNil(t, out.LastRegenAt)
	assert.True(t, last.Equal(*out.LastRegenAt))
}

func testSaveAccountsUpserts(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := []*account.Account{
		{Entity: types.NewEntity(stamp()), Address: alice, Balance: types.Tokens(1)},
		{Entity: types.NewEntity(stamp()), Address: bob, Balance: types.Tokens(2)},
	}
	require.NoError(t, s.SaveAccounts(ctx, first))

	updated := &account.Account{Entity: types.NewEntity(stamp()), Address: alice, Balance: types.Tokens(5), Locked: types.Tokens(1)}
	require.NoError(t, s.SaveAccounts(ctx, []*account.Account{updated}))

	a, err := s.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, types.Tokens(5).Equal(a.Balance))
	assert.True(t, types.Tokens(1).Equal(a.Locked))
	assert.Nil(t, a.LastRegenAt)

	b, err := s.GetAccount(ctx, bob)
	require.NoError(t, err)
	assert.True(t, types.Tokens(2).Equal(b.Balance))
}

func testListAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveAccounts(ctx, []*account.Account{
		{Entity: types.NewEntity(stamp()), Address: carol, PendingConsumption: types.Tokens(1)},
		{Entity: types.NewEntity(stamp()), Address: alice},
		{Entity: types.NewEntity(stamp()), Address: bob, PendingConsumption: types.MustParse("0.5")},
	}))

	all, err := s.ListAccounts(ctx, account.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []types.Address{alice, bob, carol}, []types.Address{all[0].Address, all[1].Address, all[2].Address})

	pending, err := s.ListAccounts(ctx, account.ListOpts{PendingOnly: true})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, bob, pending[0].Address)

	paged, err := s.ListAccounts(ctx, account.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, bob, paged[0].Address)
}

func testWallets(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetWallets(ctx)
	require.ErrorIs(t, err, tokenledger.ErrNotFound)

	w := &account.Wallets{
		MintAuthority: alice,
		Founder:       bob,
		DevPool:       carol,
		DAOTreasury:   types.MustParseAddress("0x00000000000000000000000000000000000000d4"),
		PledgeFund:    types.MustParseAddress("0x00000000000000000000000000000000000000e5"),
		InitializedAt: stamp(),
	}
	require.NoError(t, s.InitWallets(ctx, w, nil))
	require.ErrorIs(t, s.InitWallets(ctx, w, nil), tokenledger.ErrAlreadyInitialized)

	got, err := s.GetWallets(ctx)
	require.NoError(t, err)
	assert.Equal(t, w.MintAuthority, got.MintAuthority)
	assert.Equal(t, w.PledgeFund, got.PledgeFund)
	assert.Equal(t, w.DAOTreasury, got.DAOTreasury)
	assert.True(t, w.InitializedAt.Equal(got.InitializedAt))
}

func testWalletsWithGenesis(t *testing.T, s store.Store) {
	ctx := context.Background()

	w := &account.Wallets{
		MintAuthority: alice,
		Founder:       bob,
		DevPool:       carol,
		DAOTreasury:   types.MustParseAddress("0x00000000000000000000000000000000000000d4"),
		PledgeFund:    types.MustParseAddress("0x00000000000000000000000000000000000000e5"),
		InitializedAt: stamp(),
	}
	genesis := &account.Account{
		Entity:  types.NewEntity(stamp()),
		Address: alice,
		Balance: types.Tokens(1000),
	}
	require.NoError(t, s.InitWallets(ctx, w, []*account.Account{genesis}))

	got, err := s.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, types.Tokens(1000).Equal(got.Balance), "balance %s", got.Balance)
	assert.True(t, got.Locked.IsZero())

	again := genesis.Clone()
	again.Balance = types.Tokens(5)
	require.ErrorIs(t, s.InitWallets(ctx, w, []*account.Account{again}), tokenledger.ErrAlreadyInitialized)

	got, err = s.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, types.Tokens(1000).Equal(got.Balance), "a rejected init must not touch accounts, got %s", got.Balance)
}

func testActions(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := stamp()

	records := []*action.Record{
		{ID: id.NewActionID(), Address: alice, Caller: alice, Amount: types.Tokens(1), Timestamp: base},
		{ID: id.NewActionID(), Address: bob, Caller: alice, Amount: types.Tokens(2), Kind: 3, Timestamp: base.Add(time.Hour)},
		{ID: id.NewActionID(), Address: alice, Caller: alice, Amount: types.Tokens(3), Timestamp: base.Add(2 * time.Hour)},
	}
	require.NoError(t, s.RecordActions(ctx, records))

	got, err := s.QueryActions(ctx, alice, action.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[2].ID.String(), got[0].ID.String())
	assert.True(t, types.Tokens(3).Equal(got[0].Amount))

	all, err := s.QueryActions(ctx, types.ZeroAddress, action.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, action.Kind(3), all[1].Kind)

	windowed, err := s.QueryActions(ctx, types.ZeroAddress, action.QueryOpts{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, bob, windowed[0].Address)

	purged, err := s.PurgeActions(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	left, err := s.QueryActions(ctx, types.ZeroAddress, action.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, left, 1)
}

func testRegenerations(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := stamp()

	first := &regen.Event{
		ID: id.NewRegenerationID(), Address: alice, Caller: bob,
		Requested: types.Tokens(2), Amount: types.Tokens(1),
		Shares:      regen.Shares{User: types.Tokens(1), Pledge: types.MustParse("0.1")},
		SeedDerived: types.MustParse("0.1"), Timestamp: base,
	}
	second := &regen.Event{
		ID: id.NewRegenerationID(), Address: bob, Caller: bob,
		Requested: types.Tokens(1), Amount: types.Tokens(1),
		Shares:      regen.Shares{User: types.Tokens(1)},
		SelfService: true, Timestamp: base.Add(time.Hour),
	}
	require.NoError(t, s.RecordRegeneration(ctx, first))
	require.NoError(t, s.RecordRegeneration(ctx, second))

	got, err := s.ListRegenerations(ctx, alice, regen.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID.String(), got[0].ID.String())
	assert.True(t, first.Shares.Pledge.Equal(got[0].Shares.Pledge))
	assert.True(t, first.SeedDerived.Equal(got[0].SeedDerived))

	all, err := s.ListRegenerations(ctx, types.ZeroAddress, regen.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID.String(), all[0].ID.String())
	assert.True(t, all[0].SelfService)
}

func testTransfers(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := stamp()

	recs := []*transfer.Record{
		{ID: id.NewTransferID(), From: alice, To: bob, Amount: types.Tokens(1), Kind: transfer.KindTransfer, Timestamp: base},
		{ID: id.NewTransferID(), From: bob, To: carol, Amount: types.Tokens(2), Kind: transfer.KindGift, Memo: "thanks", Timestamp: base.Add(time.Minute)},
		{ID: id.NewTransferID(), From: carol, To: alice, Amount: types.Tokens(3), Kind: transfer.KindPledgeSpend, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, r := range recs {
		require.NoError(t, s.RecordTransfer(ctx, r))
	}

	bobs, err := s.ListTransfers(ctx, bob, transfer.ListOpts{})
	require.NoError(t, err)
	require.Len(t, bobs, 2)
	assert.Equal(t, recs[1].ID.String(), bobs[0].ID.String())
	assert.Equal(t, "thanks", bobs[0].Memo)

	gifts, err := s.ListTransfers(ctx, types.ZeroAddress, transfer.ListOpts{Kind: transfer.KindGift})
	require.NoError(t, err)
	require.Len(t, gifts, 1)

	limited, err := s.ListTransfers(ctx, types.ZeroAddress, transfer.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, recs[2].ID.String(), limited[0].ID.String())
}
