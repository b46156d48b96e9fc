package account

import (
	"context"

	"github.com/xraph/tokenledger/types"
)

// Store persists account records and the wallet configuration.
// SaveAccounts must commit every record or none of them. InitWallets
// writes the wallets together with the genesis accounts; when wallets
// already exist it fails with ErrAlreadyInitialized and writes nothing.
type Store interface {
	GetAccount(ctx context.Context, addr types.Address) (*Account, error)
	ListAccounts(ctx context.Context, opts ListOpts) ([]*Account, error)
	SaveAccounts(ctx context.Context, accounts []*Account) error
	GetWallets(ctx context.Context) (*Wallets, error)
	InitWallets(ctx context.Context, w *Wallets, genesis []*Account) error
}

// ListOpts filters ListAccounts. Results are ordered by address.
type ListOpts struct {
	PendingOnly bool
	Limit       int
	Offset      int
}
