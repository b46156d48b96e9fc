package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/types"
)

func TestAddressTextSortsByBytes(t *testing.T) {
	lo := types.MustParseAddress("0x0A00000000000000000000000000000000000000")
	hi := types.MustParseAddress("0xa100000000000000000000000000000000000000")

	assert.Equal(t, strings.ToLower(lo.Hex()), addrText(lo))
	assert.Less(t, addrText(lo), addrText(hi))
}

func TestAccountModelKeepsFullPrecision(t *testing.T) {
	last := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	in := &account.Account{
		Entity:             types.NewEntity(last),
		Address:            types.MustParseAddress("0x00000000000000000000000000000000000000aa"),
		Balance:            types.MaxAmount(),
		Locked:             types.MustParse("0.000000000000000001"),
		PendingConsumption: types.MustParse("12.5"),
		LastRegenAt:        &last,
	}

	m := toAccountModel(in)
	assert.Equal(t, "1", m.Locked)
	assert.Equal(t, "0", m.SeedDerived)

	out, err := fromAccountModel(&m)
	require.NoError(t, err)
	assert.Equal(t, in.Address, out.Address)
	assert.True(t, in.Balance.Equal(out.Balance))
	assert.True(t, in.Locked.Equal(out.Locked))
	assert.True(t, in.PendingConsumption.Equal(out.PendingConsumption))
}

func TestRegenerationModelCarriesShares(t *testing.T) {
	e := &regen.Event{
		ID:      id.NewRegenerationID(),
		Address: types.MustParseAddress("0x00000000000000000000000000000000000000bb"),
		Caller:  types.MustParseAddress("0x00000000000000000000000000000000000000cc"),
		Amount:  types.Tokens(2),
		Shares: regen.Shares{
			User:    types.Tokens(2),
			Pledge:  types.MustParse("0.2"),
			DAO:     types.MustParse("0.1"),
			Founder: types.MustParse("0.05"),
		},
		SeedDerived: types.MustParse("0.2"),
	}

	out, err := fromRegenerationModel(toRegenerationModel(e))
	require.NoError(t, err)
	assert.Equal(t, e.ID.String(), out.ID.String())
	assert.True(t, e.Shares.Founder.Equal(out.Shares.Founder))
	assert.True(t, e.SeedDerived.Equal(out.SeedDerived))
}

func TestFromAccountModelRejectsGarbage(t *testing.T) {
	_, err := fromAccountModel(&accountModel{Address: "nope", Balance: "0"})
	require.Error(t, err)

	_, err = fromAccountModel(&accountModel{
		Address: addrText(types.MustParseAddress("0x00000000000000000000000000000000000000aa")),
		Balance: "1.5",
	})
	require.Error(t, err)
}
