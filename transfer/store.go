package transfer

import (
	"context"

	"github.com/xraph/tokenledger/types"
)

type Store interface {
	RecordTransfer(ctx context.Context, r *Record) error
	ListTransfers(ctx context.Context, addr types.Address, opts ListOpts) ([]*Record, error)
}

// ListOpts pages results newest first. Kind filters when set.
type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
