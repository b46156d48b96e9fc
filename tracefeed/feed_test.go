package tracefeed_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store/memory"
	"github.com/xraph/tokenledger/tracefeed"
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

func startLedger(t *testing.T, feed *tracefeed.Feed) (*tokenledger.Ledger, context.Context) {
	t.Helper()

	l := tokenledger.New(memory.New(),
		tokenledger.WithPledgeFund(pledge),
		tokenledger.WithGenesisSupply(types.Tokens(100)),
		tokenledger.WithSplit(regen.Split{PledgeBps: 1_000, DAOBps: 500, FounderBps: 500}),
		tokenledger.WithPlugin(feed),
	)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))

	_, err := l.Initialize(ctx, mint, founder, devPool, dao)
	require.NoError(t, err)
	return l, ctx
}

func TestFeedWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	l, ctx := startLedger(t, tracefeed.NewWithWriter(zapcore.AddSync(&buf)))
	t.Cleanup(func() { _ = l.Stop() })

	require.NoError(t, l.GrantSeed(ctx, user))
	_, err := l.RecordAction(tokenledger.WithCaller(ctx, user), user, types.MustParse("2.1"))
	require.NoError(t, err)
	_, err = l.Regenerate(tokenledger.WithCaller(ctx, mint), user, types.MustParse("2.1"))
	require.NoError(t, err)
	_, err = l.Gift(tokenledger.WithCaller(ctx, mint), user, types.Tokens(3), "thanks")
	require.NoError(t, err)

	entries, err := tracefeed.Read(&buf)
	require.NoError(t, err)

	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Type)
		assert.False(t, e.Timestamp.IsZero(), "%s has no timestamp", e.Type)
	}
	assert.Equal(t, []string{
		tracefeed.TypeInitialized,
		tracefeed.TypeSeedGranted,
		tracefeed.TypeActionRecorded,
		tracefeed.TypeRegenerated,
		tracefeed.TypeGifted,
	}, kinds)

	seed := entries[1]
	assert.Equal(t, user.Hex(), seed.User)
	assert.Equal(t, "1.0", seed.Amount)

	rg := entries[3]
	assert.Equal(t, "2.1", rg.UserShare)
	assert.Equal(t, "0.21", rg.PledgeShare)
	assert.Equal(t, "0.105", rg.DAOShare)
	assert.Equal(t, "0.21", rg.SeedDerived)

	gift := entries[4]
	assert.Equal(t, mint.Hex(), gift.From)
	assert.Equal(t, "3.0", gift.Amount)
	assert.Equal(t, "thanks", gift.Memo)
}

func TestFeedRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	feed, err := tracefeed.Open(tracefeed.Config{Path: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l, ctx := startLedger(t, feed)
	require.NoError(t, l.GrantSeed(ctx, user))
	require.NoError(t, l.Stop())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	entries, err := tracefeed.Read(f)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, tracefeed.TypeSeedGranted, entries[1].Type)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := tracefeed.Open(tracefeed.Config{})
	assert.Error(t, err)
}

func TestReadRejectsMalformedLine(t *testing.T) {
	_, err := tracefeed.Read(bytes.NewBufferString("{\"type\":\"SeedGranted\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}
