package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tokenledger"
	audithook "github.com/xraph/tokenledger/audit_hook"
	"github.com/xraph/tokenledger/id"
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
)

type capture struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *capture) record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capture) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}

func (c *capture) last() *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func TestTransferKindsMapToActions(t *testing.T) {
	tests := []struct {
		kind     transfer.Kind
		action   string
		severity string
	}{
		{transfer.KindTransfer, audithook.ActionTransferred, audithook.SeverityInfo},
		{transfer.KindGift, audithook.ActionGifted, audithook.SeverityInfo},
		{transfer.KindDevGrant, audithook.ActionDevTokensGranted, audithook.SeverityWarning},
		{transfer.KindPledgeSpend, audithook.ActionPledgeSpent, audithook.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c := &capture{}
			ext := audithook.New(audithook.RecorderFunc(c.record))

			rec := &transfer.Record{
				ID:     id.NewTransferID(),
				From:   mint,
				To:     user,
				Amount: types.Tokens(3),
				Kind:   tt.kind,
				Memo:   "note",
			}
			require.NoError(t, ext.OnTransferred(context.Background(), rec))

			e := c.last()
			require.NotNil(t, e)
			assert.Equal(t, tt.action, e.Action)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, audithook.ResourceTransfer, e.Resource)
			assert.Equal(t, rec.ID.String(), e.ResourceID)
			assert.Equal(t, user.Hex(), e.Metadata["to"])
			assert.Equal(t, "note", e.Metadata["memo"])
		})
	}
}

func TestPartialRegenerationOutcome(t *testing.T) {
	c := &capture{}
	ext := audithook.New(audithook.RecorderFunc(c.record))

	ev := &regen.Event{
		ID:        id.NewRegenerationID(),
		Address:   user,
		Caller:    mint,
		Requested: types.Tokens(5),
		Amount:    types.Tokens(2),
		Timestamp: time.Now(),
	}
	require.NoError(t, ext.OnRegenerated(context.Background(), ev))
	assert.Equal(t, audithook.OutcomePartial, c.last().Outcome)

	ev.Amount = ev.Requested
	require.NoError(t, ext.OnRegenerated(context.Background(), ev))
	assert.Equal(t, audithook.OutcomeSuccess, c.last().Outcome)
}

func TestEnabledActionsFilter(t *testing.T) {
	c := &capture{}
	ext := audithook.New(audithook.RecorderFunc(c.record),
		audithook.WithEnabledActions(audithook.ActionSeedGranted),
	)
	ctx := context.Background()

	require.NoError(t, ext.OnSeedGranted(ctx, user, types.Tokens(1)))
	require.NoError(t, ext.OnActionsFlushed(ctx, 4, time.Millisecond))

	assert.Equal(t, []string{audithook.ActionSeedGranted}, c.actions())
}

func TestDisabledActionsFilter(t *testing.T) {
	c := &capture{}
	ext := audithook.New(audithook.RecorderFunc(c.record),
		audithook.WithDisabledActions(audithook.ActionActionsFlushed),
	)
	ctx := context.Background()

	require.NoError(t, ext.OnActionsFlushed(ctx, 4, time.Millisecond))
	require.NoError(t, ext.OnSeedGranted(ctx, user, types.Tokens(1)))

	assert.Equal(t, []string{audithook.ActionSeedGranted}, c.actions())
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit backend down")
	}))
	assert.NoError(t, ext.OnSeedGranted(context.Background(), user, types.Tokens(1)))
}

func TestLedgerEmitsAuditTrail(t *testing.T) {
	c := &capture{}
	l := tokenledger.New(memory.New(),
		tokenledger.WithPledgeFund(pledge),
		tokenledger.WithGenesisSupply(types.Tokens(100)),
		tokenledger.WithPlugin(audithook.New(audithook.RecorderFunc(c.record))),
	)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	_, err := l.Initialize(ctx, mint, founder, devPool, dao)
	require.NoError(t, err)
	require.NoError(t, l.GrantSeed(ctx, user))
	_, err = l.Gift(tokenledger.WithCaller(ctx, mint), user, types.Tokens(2), "welcome")
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionLedgerInitialized,
		audithook.ActionSeedGranted,
		audithook.ActionGifted,
	}, c.actions())
	assert.Equal(t, pledge.Hex(), c.events[0].Metadata["pledge_fund"])
}
