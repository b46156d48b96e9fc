package tokenledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/types"
)

// stubStore serves accounts from a map and counts saves. Methods the txn
// never calls fall through to the nil embedded interface.
type stubStore struct {
	store.Store
	accounts map[types.Address]*account.Account
	saves    int
	saveErr  error
}

func (s *stubStore) GetAccount(_ context.Context, addr types.Address) (*account.Account, error) {
	if a, ok := s.accounts[addr]; ok {
		return a.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *stubStore) SaveAccounts(_ context.Context, accounts []*account.Account) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, a := range accounts {
		s.accounts[a.Address] = a.Clone()
	}
	return nil
}

var txnAddr = types.MustParseAddress("0x00000000000000000000000000000000000000aa")

func newTxn(s *stubStore) *txn {
	l := &Ledger{store: s, now: func() time.Time { return time.Unix(1_700_000_000, 0) }}
	return l.begin(context.Background())
}

func TestTxnDebitRespectsFlags(t *testing.T) {
	s := &stubStore{accounts: map[types.Address]*account.Account{
		txnAddr: {Address: txnAddr, Balance: types.Tokens(3), Locked: types.Tokens(1)},
	}}
	tx := newTxn(s)

	require.ErrorIs(t, tx.debit(txnAddr, types.Tokens(4)), ErrInsufficientBalance)
	require.ErrorIs(t, tx.debit(txnAddr, types.MustParse("2.5")), ErrInvariantViolation)
	require.NoError(t, tx.debit(txnAddr, types.Tokens(2)))

	a, err := tx.load(txnAddr)
	require.NoError(t, err)
	assert.True(t, types.Tokens(1).Equal(a.Balance))
}

func TestTxnLockUnlockBounds(t *testing.T) {
	s := &stubStore{accounts: map[types.Address]*account.Account{}}
	tx := newTxn(s)

	require.NoError(t, tx.credit(txnAddr, types.Tokens(2)))
	require.ErrorIs(t, tx.lock(txnAddr, types.Tokens(3)), ErrInvariantViolation)
	require.NoError(t, tx.lock(txnAddr, types.Tokens(2)))
	require.ErrorIs(t, tx.unlock(txnAddr, types.Tokens(3)), ErrInvariantViolation)
	require.ErrorIs(t, tx.flag(txnAddr, types.Tokens(3)), ErrInvariantViolation)
	require.ErrorIs(t, tx.credit(txnAddr, types.MaxAmount()), ErrInvariantViolation)
}

func TestTxnNothingPersistsUntilCommit(t *testing.T) {
	s := &stubStore{accounts: map[types.Address]*account.Account{}}
	tx := newTxn(s)

	require.NoError(t, tx.credit(txnAddr, types.Tokens(1)))
	assert.Zero(t, s.saves)
	assert.Empty(t, s.accounts)

	require.NoError(t, tx.commit())
	assert.Equal(t, 1, s.saves)
	stored := s.accounts[txnAddr]
	require.NotNil(t, stored)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestTxnCommitRejectsBrokenAccount(t *testing.T) {
	s := &stubStore{accounts: map[types.Address]*account.Account{}}
	tx := newTxn(s)

	a, err := tx.load(txnAddr)
	require.NoError(t, err)
	a.DevLocked = types.Tokens(1)

	require.ErrorIs(t, tx.commit(), ErrInvariantViolation)
	assert.Zero(t, s.saves)
}

func TestTxnCommitRejectsSeedLockOutsideLocked(t *testing.T) {
	s := &stubStore{accounts: map[types.Address]*account.Account{
		txnAddr: {
			Address:    txnAddr,
			Balance:    types.Tokens(3),
			Locked:     types.Tokens(2),
			DevLocked:  types.Tokens(1),
			SeedLocked: types.Tokens(1),
		},
	}}

	tx := newTxn(s)
	_, err := tx.load(txnAddr)
	require.NoError(t, err)
	require.NoError(t, tx.commit(), "seed and dev locks may fill locked exactly")

	tx = newTxn(s)
	a, err := tx.load(txnAddr)
	require.NoError(t, err)
	a.SeedLocked = types.MustParse("1.000000000000000001")
	require.ErrorIs(t, tx.commit(), ErrInvariantViolation)
}

func TestTxnCommitSurfacesStoreError(t *testing.T) {
	boom := errors.New("disk full")
	s := &stubStore{accounts: map[types.Address]*account.Account{}, saveErr: boom}
	tx := newTxn(s)

	require.NoError(t, tx.credit(txnAddr, types.Tokens(1)))
	require.ErrorIs(t, tx.commit(), boom)
}
