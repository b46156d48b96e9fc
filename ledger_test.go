package tokenledger_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store/memory"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

var (
	mint    = types.MustParseAddress("0x1000000000000000000000000000000000000001")
	founder = types.MustParseAddress("0x1000000000000000000000000000000000000002")
	devPool = types.MustParseAddress("0x1000000000000000000000000000000000000003")
	dao     = types.MustParseAddress("0x1000000000000000000000000000000000000004")
	pledge  = types.MustParseAddress("0x1000000000000000000000000000000000000005")
	user    = types.MustParseAddress("0x2000000000000000000000000000000000000001")
	other   = types.MustParseAddress("0x2000000000000000000000000000000000000002")
)

type fixture struct {
	l     *tokenledger.Ledger
	store *memory.Store
	ctx   context.Context

	mu  sync.Mutex
	now time.Time
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// as returns a context whose caller is addr.
func (f *fixture) as(addr types.Address) context.Context {
	return tokenledger.WithCaller(f.ctx, addr)
}

// newFixture returns an initialized ledger with a 1000-token genesis supply
// held by the mint authority and a 10% pledge split.
func newFixture(t *testing.T, opts ...tokenledger.Option) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.New(),
		ctx:   context.Background(),
		now:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	base := []tokenledger.Option{
		tokenledger.WithClock(f.clock),
		tokenledger.WithPledgeFund(pledge),
		tokenledger.WithGenesisSupply(types.Tokens(1000)),
		tokenledger.WithSplit(regen.Split{PledgeBps: 1_000}),
	}
	f.l = tokenledger.New(f.store, append(base, opts...)...)

	require.NoError(t, f.l.Start(f.ctx))
	t.Cleanup(func() { _ = f.l.Stop() })

	_, err := f.l.Initialize(f.ctx, mint, founder, devPool, dao)
	require.NoError(t, err)
	return f
}

func (f *fixture) account(t *testing.T, addr types.Address) *account.Account {
	t.Helper()
	a, err := f.l.Account(f.ctx, addr)
	require.NoError(t, err)
	return a
}

func assertAmount(t *testing.T, want string, got types.Amount, msg ...string) {
	t.Helper()
	assert.Truef(t, types.MustParse(want).Equal(got), "want %s, got %s %s", want, got, strings.Join(msg, " "))
}

// ──────────────────────────────────────────────────
// Seed grants and the lock gate
// ──────────────────────────────────────────────────

func TestGrantSeedLocksFullAmount(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	a := f.account(t, user)
	assertAmount(t, "1", a.Balance)
	assertAmount(t, "1", a.Locked)
	assertAmount(t, "1", a.SeedLocked)
	assert.True(t, a.SeedGranted)
	assert.Equal(t, account.StateSeeded, a.State())

	err := f.l.GrantSeed(f.ctx, user)
	require.ErrorIs(t, err, tokenledger.ErrAlreadyGranted)

	a = f.account(t, user)
	assertAmount(t, "1", a.Balance)
	assertAmount(t, "1", a.Locked)
}

func TestTransferCannotDrawOnLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	_, err := f.l.Transfer(f.as(mint), user, types.Tokens(2))
	require.NoError(t, err)

	unlocked, err := f.l.Transferable(f.ctx, user)
	require.NoError(t, err)
	assertAmount(t, "2", unlocked)

	_, err = f.l.Transfer(f.as(user), other, types.Tokens(1))
	require.NoError(t, err)

	_, err = f.l.Transfer(f.as(user), other, types.MustParse("2.1"))
	require.ErrorIs(t, err, tokenledger.ErrCannotTransferLocked)
	assert.True(t, tokenledger.IsBalanceError(err))

	a := f.account(t, user)
	assertAmount(t, "2", a.Balance)
	assertAmount(t, "1", a.Locked)
	assertAmount(t, "1", f.account(t, other).Balance)
}

func TestRegenerationConvertsSeedLock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	_, err := f.l.RecordAction(f.as(user), user, types.Tokens(1))
	require.NoError(t, err)

	f.advance(25 * time.Hour)

	e, err := f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.NoError(t, err)
	assertAmount(t, "1", e.Amount)
	assertAmount(t, "0.1", e.Shares.Pledge)
	assertAmount(t, "0.1", e.SeedDerived)

	a := f.account(t, user)
	// The consumed seed token is replaced by the regenerated one.
	assertAmount(t, "2", a.Balance)
	assertAmount(t, "1", a.Locked)
	assertAmount(t, "0", a.SeedLocked)
	assertAmount(t, "0", a.PendingConsumption)

	p := f.account(t, pledge)
	assert.True(t, p.SeedDerived.Equal(p.Balance))
	assertAmount(t, "0.1", p.Balance)
}

func TestRegenerateRejectsZeroAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Regenerate(f.as(mint), user, types.Zero())
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)

	require.NoError(t, f.l.GrantSeed(f.ctx, user))
	_, err = f.l.RecordAction(f.as(user), user, types.Tokens(3))
	require.NoError(t, err)

	_, err = f.l.Regenerate(f.as(mint), user, types.Zero())
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)

	assertAmount(t, "3", f.account(t, user).PendingConsumption)
}

// ──────────────────────────────────────────────────
// Initialization
// ──────────────────────────────────────────────────

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Initialize(f.ctx, mint, founder, devPool, dao)
	require.ErrorIs(t, err, tokenledger.ErrAlreadyInitialized)

	w, err := f.l.Wallets(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, mint, w.MintAuthority)
	assert.Equal(t, pledge, w.PledgeFund)
	assert.Equal(t, "dev_pool", w.RoleOf(devPool))

	assertAmount(t, "1000", f.account(t, mint).Balance)
	assertAmount(t, "0", f.account(t, mint).Locked)
}

func TestInitializeAcrossRestart(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	first := tokenledger.New(s, tokenledger.WithPledgeFund(pledge))
	_, err := first.Initialize(ctx, mint, founder, devPool, dao)
	require.NoError(t, err)

	second := tokenledger.New(s, tokenledger.WithPledgeFund(pledge))
	require.NoError(t, second.Start(ctx))
	t.Cleanup(func() { _ = second.Stop() })
	_, err = second.Initialize(ctx, mint, founder, devPool, dao)
	require.ErrorIs(t, err, tokenledger.ErrAlreadyInitialized)
}

// flakyInitStore fails the first failures wallet initializations.
type flakyInitStore struct {
	*memory.Store
	failures int
}

func (s *flakyInitStore) InitWallets(ctx context.Context, w *account.Wallets, genesis []*account.Account) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	return s.Store.InitWallets(ctx, w, genesis)
}

func TestInitializeFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	s := &flakyInitStore{Store: memory.New(), failures: 1}
	l := tokenledger.New(s,
		tokenledger.WithPledgeFund(pledge),
		tokenledger.WithGenesisSupply(types.Tokens(1000)),
	)

	_, err := l.Initialize(ctx, mint, founder, devPool, dao)
	require.ErrorContains(t, err, "disk full")

	_, err = s.GetWallets(ctx)
	require.ErrorIs(t, err, tokenledger.ErrNotFound)
	_, err = s.GetAccount(ctx, mint)
	require.ErrorIs(t, err, tokenledger.ErrNotFound, "no genesis supply without wallets")
	require.ErrorIs(t, l.GrantSeed(ctx, user), tokenledger.ErrNotInitialized)

	_, err = l.Initialize(ctx, mint, founder, devPool, dao)
	require.NoError(t, err, "a failed initialization can be retried")

	supply, err := l.Balance(ctx, mint)
	require.NoError(t, err)
	assertAmount(t, "1000", supply)
}

func TestInitializeRejectsBadWallets(t *testing.T) {
	ctx := context.Background()

	t.Run("ZeroAddress", func(t *testing.T) {
		l := tokenledger.New(memory.New(), tokenledger.WithPledgeFund(pledge))
		_, err := l.Initialize(ctx, mint, types.ZeroAddress, devPool, dao)
		require.ErrorIs(t, err, tokenledger.ErrInvalidAddress)

		var ve tokenledger.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "founder", ve.Field)
	})

	t.Run("MissingPledgeFund", func(t *testing.T) {
		l := tokenledger.New(memory.New())
		_, err := l.Initialize(ctx, mint, founder, devPool, dao)
		require.ErrorIs(t, err, tokenledger.ErrInvalidAddress)
	})

	t.Run("PledgeFundSharesRole", func(t *testing.T) {
		l := tokenledger.New(memory.New(), tokenledger.WithPledgeFund(dao))
		_, err := l.Initialize(ctx, mint, founder, devPool, dao)
		require.ErrorIs(t, err, tokenledger.ErrInvalidAddress)
	})

	t.Run("BadSplit", func(t *testing.T) {
		l := tokenledger.New(memory.New(),
			tokenledger.WithPledgeFund(pledge),
			tokenledger.WithSplit(regen.Split{DAOBps: regen.MaxBps + 1}),
		)
		_, err := l.Initialize(ctx, mint, founder, devPool, dao)
		var ve tokenledger.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "split", ve.Field)
	})
}

func TestOperationsRequireInitialize(t *testing.T) {
	l := tokenledger.New(memory.New(), tokenledger.WithPledgeFund(pledge))
	ctx := tokenledger.WithCaller(context.Background(), mint)

	require.ErrorIs(t, l.GrantSeed(ctx, user), tokenledger.ErrNotInitialized)

	_, err := l.RecordAction(ctx, user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrNotInitialized)

	_, err = l.Regenerate(ctx, user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrNotInitialized)

	_, err = l.Transfer(ctx, user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrNotInitialized)

	_, err = l.PledgeStatus(ctx)
	require.ErrorIs(t, err, tokenledger.ErrNotInitialized)
}

// ──────────────────────────────────────────────────
// Action ledger
// ──────────────────────────────────────────────────

func TestRecordActionAccumulates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	_, err := f.l.RecordAction(f.as(user), user, types.MustParse("0.5"))
	require.NoError(t, err)
	rec, err := f.l.RecordAction(f.as(mint), user, types.MustParse("0.25"), tokenledger.WithActionKind(7))
	require.NoError(t, err)
	assert.Equal(t, mint, rec.Caller)
	assert.Equal(t, action.Kind(7), rec.Kind)

	a := f.account(t, user)
	assertAmount(t, "0.75", a.PendingConsumption)
	assertAmount(t, "1", a.Balance, "recording consumption never moves the balance")
	assertAmount(t, "1", a.Locked)
}

func TestRecordActionValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.RecordAction(f.as(user), user, types.Zero())
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)

	_, err = f.l.RecordAction(f.as(user), types.ZeroAddress, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrInvalidAddress)

	_, err = f.l.RecordAction(f.as(other), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)

	_, err = f.l.RecordAction(f.ctx, user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)
}

func TestActionJournalFlush(t *testing.T) {
	f := newFixture(t, tokenledger.WithActionJournal(1000, time.Hour))

	for i := 0; i < 3; i++ {
		_, err := f.l.RecordAction(f.as(user), user, types.Tokens(1))
		require.NoError(t, err)
	}

	recs, err := f.l.Actions(f.ctx, user, action.QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, f.l.FlushActions(f.ctx))

	recs, err = f.l.Actions(f.ctx, user, action.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	purged, err := f.l.PurgeActions(f.ctx, f.clock().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
	assertAmount(t, "3", f.account(t, user).PendingConsumption)
}

func TestActionBufferFullJournalsInline(t *testing.T) {
	s := memory.New()
	l := tokenledger.New(s, tokenledger.WithPledgeFund(pledge), tokenledger.WithActionBuffer(2))
	ctx := context.Background()
	_, err := l.Initialize(ctx, mint, founder, devPool, dao)
	require.NoError(t, err)

	// Never started, so nothing drains the buffer.
	uctx := tokenledger.WithCaller(ctx, user)
	for i := 0; i < 5; i++ {
		_, err := l.RecordAction(uctx, user, types.Tokens(1))
		require.NoError(t, err, "record %d", i)
	}

	pending, err := l.PendingConsumption(ctx, user)
	require.NoError(t, err)
	assertAmount(t, "5", pending)

	recs, err := s.QueryActions(ctx, user, action.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, 3, "the overflow is journaled inline")

	require.NoError(t, l.FlushActions(ctx))
	recs, err = s.QueryActions(ctx, user, action.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

// ──────────────────────────────────────────────────
// Regeneration engine
// ──────────────────────────────────────────────────

func TestRegenerateRequiresMintAuthority(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.RecordAction(f.as(user), user, types.Tokens(1))
	require.NoError(t, err)

	_, err = f.l.Regenerate(f.as(user), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)
	assert.True(t, tokenledger.IsAuthorization(err))

	assertAmount(t, "0", f.account(t, user).Balance)
}

func TestRegenerateInterval(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.RecordAction(f.as(user), user, types.Tokens(4))
	require.NoError(t, err)

	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.NoError(t, err, "an account that never regenerated is eligible")

	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrNotEligible)

	next, err := f.l.NextRegenAt(f.ctx, user)
	require.NoError(t, err)
	assert.True(t, f.clock().Add(regen.DefaultInterval).Equal(next))

	f.advance(regen.DefaultInterval - time.Second)
	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrNotEligible)

	f.advance(time.Second)
	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.NoError(t, err, "eligible exactly at the interval boundary")

	a := f.account(t, user)
	assertAmount(t, "2", a.Locked)
	assertAmount(t, "2", a.PendingConsumption)
}

func TestRegenerateCapsToPending(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.RecordAction(f.as(user), user, types.MustParse("0.5"))
	require.NoError(t, err)

	e, err := f.l.Regenerate(f.as(mint), user, types.Tokens(3))
	require.NoError(t, err)
	assertAmount(t, "3", e.Requested)
	assertAmount(t, "0.5", e.Amount)

	f.advance(regen.DefaultInterval)
	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount, "nothing pending")
}

func TestRegenerateUncapped(t *testing.T) {
	f := newFixture(t, tokenledger.WithRegenParams(regen.Params{Interval: time.Hour}))

	e, err := f.l.Regenerate(f.as(mint), user, types.Tokens(5))
	require.NoError(t, err)
	assertAmount(t, "5", e.Amount)
	assertAmount(t, "5", f.account(t, user).Locked)
	assertAmount(t, "0", f.account(t, user).PendingConsumption)
}

func TestRegenerateDistributesShares(t *testing.T) {
	f := newFixture(t, tokenledger.WithSplit(regen.Split{PledgeBps: 500, DAOBps: 300, FounderBps: 200}))
	_, err := f.l.RecordAction(f.as(user), user, types.Tokens(10))
	require.NoError(t, err)

	e, err := f.l.Regenerate(f.as(mint), user, types.Tokens(10))
	require.NoError(t, err)

	assertAmount(t, "10", f.account(t, user).Balance)
	assertAmount(t, "0.5", f.account(t, pledge).Balance)
	assertAmount(t, "0.3", f.account(t, dao).Balance)
	assertAmount(t, "0.2", f.account(t, founder).Balance)

	total, overflow := e.Shares.Total()
	require.False(t, overflow)
	assertAmount(t, "11", total)

	// Unseeded users produce no seed-derived pledge credit.
	assertAmount(t, "0", e.SeedDerived)
	assertAmount(t, "0", f.account(t, pledge).SeedDerived)
}

func TestRegenerationCompounds(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	for i := 0; i < 3; i++ {
		_, err := f.l.RecordAction(f.as(user), user, types.Tokens(1))
		require.NoError(t, err)
		_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
		require.NoError(t, err)
		f.advance(regen.DefaultInterval)
	}

	a := f.account(t, user)
	assertAmount(t, "4", a.Balance)
	assertAmount(t, "3", a.Locked, "the seed lock is converted once, later regenerations add")
	assertAmount(t, "1", a.Transferable())

	p := f.account(t, pledge)
	assertAmount(t, "0.3", p.SeedDerived)
	assert.True(t, p.SeedDerived.Equal(p.Balance))

	events, err := f.l.Regenerations(f.ctx, user, regen.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestSplitRegenerationLocksLikeSingle(t *testing.T) {
	tests := []struct {
		name   string
		seeded bool
		half   string
		whole  string
		locked string
	}{
		{"Fresh", false, "0.5", "1", "1"},
		{"FreshLarge", false, "7.25", "14.5", "14.5"},
		{"FreshAtomic", false, "0.000000000000000001", "0.000000000000000002", "0.000000000000000002"},
		{"SeededWithinSeed", true, "0.5", "1", "1"},
		{"SeededPastSeed", true, "1.5", "3", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.seeded {
				require.NoError(t, f.l.GrantSeed(f.ctx, user))
				require.NoError(t, f.l.GrantSeed(f.ctx, other))
			}

			_, err := f.l.RecordAction(f.as(user), user, types.MustParse(tt.whole))
			require.NoError(t, err)
			_, err = f.l.RecordAction(f.as(other), other, types.MustParse(tt.whole))
			require.NoError(t, err)

			_, err = f.l.Regenerate(f.as(mint), user, types.MustParse(tt.half))
			require.NoError(t, err)
			f.advance(regen.DefaultInterval)
			_, err = f.l.Regenerate(f.as(mint), user, types.MustParse(tt.half))
			require.NoError(t, err)

			_, err = f.l.Regenerate(f.as(mint), other, types.MustParse(tt.whole))
			require.NoError(t, err)

			twice, once := f.account(t, user), f.account(t, other)
			assertAmount(t, tt.locked, twice.Locked, "two halves")
			assertAmount(t, tt.locked, once.Locked, "one whole")
			assert.True(t, twice.Balance.Equal(once.Balance), "balance %s vs %s", twice.Balance, once.Balance)
			assert.True(t, twice.SeedLocked.Equal(once.SeedLocked))
		})
	}
}

func TestRegenerateSelf(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.RecordAction(f.as(user), user, types.MustParse("1.5"))
	require.NoError(t, err)

	e, err := f.l.RegenerateSelf(f.as(user))
	require.NoError(t, err)
	assert.True(t, e.SelfService)
	assert.Equal(t, user, e.Caller)
	assertAmount(t, "1.5", e.Amount)

	_, err = f.l.RegenerateSelf(f.ctx)
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)

	f.advance(regen.DefaultInterval)
	_, err = f.l.RegenerateSelf(f.as(user))
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)
}

func TestRegenerateAllEligible(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.RegenerateAllEligible(f.as(mint))
	require.ErrorIs(t, err, tokenledger.ErrNothingEligible)

	_, err = f.l.RecordAction(f.as(user), user, types.Tokens(2))
	require.NoError(t, err)
	_, err = f.l.RecordAction(f.as(other), other, types.Tokens(3))
	require.NoError(t, err)

	// other regenerates early and is still inside its interval for the batch.
	_, err = f.l.Regenerate(f.as(mint), other, types.Tokens(1))
	require.NoError(t, err)

	_, err = f.l.RegenerateAllEligible(f.as(user))
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)

	events, err := f.l.RegenerateAllEligible(f.as(mint))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, user, events[0].Address)
	assertAmount(t, "2", events[0].Amount)

	assertAmount(t, "2", f.account(t, other).PendingConsumption)

	f.advance(regen.DefaultInterval)
	events, err = f.l.RegenerateAllEligible(f.as(mint))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, other, events[0].Address)
}

func TestRegenerateAllEligibleWithConcurrentWriters(t *testing.T) {
	f := newFixture(t)

	// More than one listing page.
	const n = 450
	batch := make([]types.Address, n)
	for i := range batch {
		batch[i] = types.MustParseAddress(fmt.Sprintf("0x3%039x", i))
		_, err := f.l.RecordAction(f.as(mint), batch[i], types.Tokens(1))
		require.NoError(t, err)
	}

	// Writers add accounts that sort ahead of the batch while it runs.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			_, _ = f.l.RecordAction(f.as(mint), types.MustParseAddress(fmt.Sprintf("0x2f%038x", i)), types.Tokens(1))
		}
	}()

	events, err := f.l.RegenerateAllEligible(f.as(mint))
	close(done)
	wg.Wait()
	require.NoError(t, err)

	seen := make(map[types.Address]int, len(events))
	for _, e := range events {
		seen[e.Address]++
	}
	for _, addr := range batch {
		assert.Equal(t, 1, seen[addr], "%s regenerated once", addr.Hex())
		assertAmount(t, "0", f.account(t, addr).PendingConsumption)
	}
}

// ──────────────────────────────────────────────────
// Transfer guard and pledge fund
// ──────────────────────────────────────────────────

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.l.Transfer(f.ctx, user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)

	_, err = f.l.Transfer(f.as(mint), types.ZeroAddress, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrInvalidAddress)

	_, err = f.l.Transfer(f.as(mint), user, types.Zero())
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)

	_, err = f.l.Transfer(f.as(user), other, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrCannotTransferLocked)
}

func TestTransferPreservesLocks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))
	_, err := f.l.Transfer(f.as(mint), user, types.Tokens(5))
	require.NoError(t, err)

	_, err = f.l.Transfer(f.as(user), other, types.MustParse("5.000000000000000001"))
	require.ErrorIs(t, err, tokenledger.ErrCannotTransferLocked, "one atomic unit past the unlocked balance")
	assertAmount(t, "6", f.account(t, user).Balance)

	_, err = f.l.Transfer(f.as(user), other, types.Tokens(5))
	require.NoError(t, err, "the full unlocked balance may leave")

	a := f.account(t, user)
	assertAmount(t, "1", a.Balance)
	assertAmount(t, "1", a.Locked)

	b := f.account(t, other)
	assertAmount(t, "5", b.Balance)
	assertAmount(t, "0", b.Locked, "received tokens arrive unlocked")
}

func TestGiftIsJournaled(t *testing.T) {
	f := newFixture(t)

	rec, err := f.l.Gift(f.as(mint), user, types.Tokens(2), "welcome")
	require.NoError(t, err)
	assert.Equal(t, transfer.KindGift, rec.Kind)

	recs, err := f.l.Transfers(f.ctx, user, transfer.ListOpts{Kind: transfer.KindGift})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "welcome", recs[0].Memo)
}

func TestPledgeSpendBoundary(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))
	_, err := f.l.RecordAction(f.as(user), user, types.Tokens(10))
	require.NoError(t, err)
	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(10))
	require.NoError(t, err)

	// Top the pledge fund up with two unflagged tokens.
	_, err = f.l.Transfer(f.as(mint), pledge, types.Tokens(2))
	require.NoError(t, err)

	status, err := f.l.PledgeStatus(f.ctx)
	require.NoError(t, err)
	assertAmount(t, "3", status.Balance)
	assertAmount(t, "1", status.SeedDerived)
	assertAmount(t, "2", status.Spendable)

	_, err = f.l.SpendPledge(f.as(mint), other, types.MustParse("2.000000000000000001"), "too much")
	require.ErrorIs(t, err, tokenledger.ErrInsufficientUnlockedPledgeFunds)

	_, err = f.l.SpendPledge(f.as(user), other, types.Tokens(1), "")
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)

	_, err = f.l.SpendPledge(f.as(pledge), other, types.Tokens(2), "grant")
	require.NoError(t, err)

	p := f.account(t, pledge)
	assertAmount(t, "1", p.Balance)
	assertAmount(t, "1", p.SeedDerived, "seed-derived credit is never spent")

	_, err = f.l.Transfer(f.as(pledge), other, types.MustParse("0.1"))
	require.ErrorIs(t, err, tokenledger.ErrInsufficientUnlockedPledgeFunds)
}

func TestDevGrantAndUnlock(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Transfer(f.as(mint), devPool, types.Tokens(10))
	require.NoError(t, err)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	_, err = f.l.GrantLockedDevTokens(f.as(user), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrUnauthorized)

	_, err = f.l.GrantLockedDevTokens(f.as(mint), user, types.Tokens(11))
	require.ErrorIs(t, err, tokenledger.ErrCannotTransferLocked)

	rec, err := f.l.GrantLockedDevTokens(f.as(mint), user, types.Tokens(4))
	require.NoError(t, err)
	assert.Equal(t, devPool, rec.From)
	assert.Equal(t, transfer.KindDevGrant, rec.Kind)

	a := f.account(t, user)
	assertAmount(t, "5", a.Balance)
	assertAmount(t, "5", a.Locked)
	assertAmount(t, "4", a.DevLocked)

	released, err := f.l.UnlockDevTokens(f.as(mint), user)
	require.NoError(t, err)
	assertAmount(t, "4", released)

	a = f.account(t, user)
	assertAmount(t, "1", a.Locked, "the seed lock survives")
	assertAmount(t, "0", a.DevLocked)

	_, err = f.l.UnlockDevTokens(f.as(mint), user)
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)
}

// ──────────────────────────────────────────────────
// Invariants
// ──────────────────────────────────────────────────

func TestLockedNeverExceedsBalance(t *testing.T) {
	f := newFixture(t, tokenledger.WithSplit(regen.Split{PledgeBps: 700, DAOBps: 200, FounderBps: 100}))
	users := []types.Address{user, other}

	for _, u := range users {
		require.NoError(t, f.l.GrantSeed(f.ctx, u))
		_, err := f.l.Transfer(f.as(mint), u, types.Tokens(3))
		require.NoError(t, err)
	}
	for round := 0; round < 4; round++ {
		for _, u := range users {
			_, err := f.l.RecordAction(f.as(u), u, types.MustParse("0.7"))
			require.NoError(t, err)
		}
		_, err := f.l.RegenerateAllEligible(f.as(mint))
		require.NoError(t, err)
		_, _ = f.l.Transfer(f.as(user), other, types.MustParse("0.5"))
		f.advance(regen.DefaultInterval)
	}

	all, err := f.l.Accounts(f.ctx, account.ListOpts{})
	require.NoError(t, err)
	for _, a := range all {
		assert.False(t, a.Locked.GreaterThan(a.Balance), "%s locked %s above balance %s", a.Address.Hex(), a.Locked, a.Balance)
		assert.False(t, a.SeedDerived.GreaterThan(a.Balance), "%s seed-derived above balance", a.Address.Hex())
	}
}

func TestFailedOperationsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.l.GrantSeed(f.ctx, user))
	before := f.account(t, user)

	_, _ = f.l.Transfer(f.as(user), other, types.Tokens(1))
	_, _ = f.l.Regenerate(f.as(user), user, types.Tokens(1))
	_, _ = f.l.Regenerate(f.as(mint), user, types.Zero())
	_ = f.l.GrantSeed(f.ctx, user)

	after := f.account(t, user)
	assert.True(t, before.Balance.Equal(after.Balance))
	assert.True(t, before.Locked.Equal(after.Locked))
	assert.True(t, before.PendingConsumption.Equal(after.PendingConsumption))

	_, err := f.store.GetAccount(f.ctx, other)
	require.ErrorIs(t, err, tokenledger.ErrNotFound, "a rejected transfer must not create the recipient")
}

func TestConcurrentRecordAndRegenerate(t *testing.T) {
	f := newFixture(t, tokenledger.WithRegenParams(regen.Params{Interval: 0, CapToPending: true}))
	require.NoError(t, f.l.GrantSeed(f.ctx, user))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.l.RecordAction(f.as(user), user, types.MustParse("0.1"))
		}()
		go func() {
			defer wg.Done()
			_, _ = f.l.RegenerateSelf(f.as(user))
		}()
	}
	wg.Wait()

	a := f.account(t, user)
	regenerated, underflow := a.Balance.Sub(types.Tokens(1))
	require.False(t, underflow)
	total, overflow := regenerated.Add(a.PendingConsumption)
	require.False(t, overflow)
	assertAmount(t, "2", total, "every recorded unit is either pending or regenerated")

	converted, underflow := types.Tokens(1).Sub(a.SeedLocked)
	require.False(t, underflow)
	assert.True(t, a.Transferable().Equal(converted), "only the converted seed lock is free, got %s", a.Transferable())
}

// ──────────────────────────────────────────────────
// Plugins
// ──────────────────────────────────────────────────

type recordingPlugin struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPlugin) Name() string { return "recorder" }

func (p *recordingPlugin) add(e string) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *recordingPlugin) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingPlugin) OnInitialized(context.Context, *account.Wallets) error {
	p.add("initialized")
	return nil
}

func (p *recordingPlugin) OnSeedGranted(context.Context, types.Address, types.Amount) error {
	p.add("seed")
	return nil
}

func (p *recordingPlugin) OnRegenerated(context.Context, *regen.Event) error {
	p.add("regenerated")
	return nil
}

func (p *recordingPlugin) OnTransferred(_ context.Context, r *transfer.Record) error {
	p.add("transferred:" + string(r.Kind))
	return nil
}

func (p *recordingPlugin) OnGifted(context.Context, *transfer.Record) error {
	p.add("gifted")
	return nil
}

func TestPluginEvents(t *testing.T) {
	rp := &recordingPlugin{}
	f := newFixture(t, tokenledger.WithPlugin(rp))

	require.NoError(t, f.l.GrantSeed(f.ctx, user))
	_, err := f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.ErrorIs(t, err, tokenledger.ErrInvalidAmount)
	_, err = f.l.RecordAction(f.as(user), user, types.Tokens(1))
	require.NoError(t, err)
	_, err = f.l.Regenerate(f.as(mint), user, types.Tokens(1))
	require.NoError(t, err)
	_, err = f.l.Gift(f.as(mint), user, types.Tokens(1), "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"initialized",
		"seed",
		"regenerated",
		"transferred:gift",
		"gifted",
	}, rp.seen())
}
