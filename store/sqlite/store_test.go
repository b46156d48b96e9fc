package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/store/sqlite"
	"github.com/xraph/tokenledger/store/storetest"
)

// openStore returns a migrated store on a fresh database file.
func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	drv := sqlitedriver.New()
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=busy_timeout(5000)"
	require.NoError(t, drv.Open(ctx, dsn))

	db, err := grove.Open(drv)
	require.NoError(t, err)

	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openStore(t) })
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}
