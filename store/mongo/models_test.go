package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

func TestAccountModelPendingFlag(t *testing.T) {
	a := &account.Account{
		Address: types.MustParseAddress("0x00000000000000000000000000000000000000aa"),
		Balance: types.Tokens(1),
	}
	assert.False(t, toAccountModel(a).HasPending)

	a.PendingConsumption = types.AtomicUnits(1)
	assert.True(t, toAccountModel(a).HasPending)
}

func TestAccountModelRoundTrip(t *testing.T) {
	last := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	in := &account.Account{
		Entity:      types.NewEntity(last),
		Address:     types.MustParseAddress("0x00000000000000000000000000000000000000aa"),
		Balance:     types.MaxAmount(),
		Locked:      types.Tokens(3),
		SeedGranted: true,
		LastRegenAt: &last,
		SeedDerived: types.MustParse("0.5"),
	}

	m := toAccountModel(in)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", m.Address)
	assert.Equal(t, "3000000000000000000", m.Locked)

	out, err := fromAccountModel(m)
	require.NoError(t, err)

	assert.Equal(t, in.Address, out.Address)
	assert.True(t, in.Balance.Equal(out.Balance))
	assert.True(t, in.SeedDerived.Equal(out.SeedDerived))
	require.NotNil(t, out.LastRegenAt)
	assert.True(t, last.Equal(*out.LastRegenAt))
}

func TestTransferModelRoundTrip(t *testing.T) {
	in := &transfer.Record{
		ID:     id.NewTransferID(),
		From:   types.MustParseAddress("0x00000000000000000000000000000000000000aa"),
		To:     types.MustParseAddress("0x00000000000000000000000000000000000000bb"),
		Amount: types.MustParse("2.1"),
		Kind:   transfer.KindGift,
		Memo:   "hi",
	}

	out, err := fromTransferModel(toTransferModel(in))
	require.NoError(t, err)
	assert.Equal(t, in.ID.String(), out.ID.String())
	assert.Equal(t, in.To, out.To)
	assert.Equal(t, transfer.KindGift, out.Kind)
	assert.True(t, in.Amount.Equal(out.Amount))
}
