package action

import (
	"context"
	"time"

	"github.com/xraph/tokenledger/types"
)

type Store interface {
	RecordActions(ctx context.Context, records []*Record) error
	QueryActions(ctx context.Context, addr types.Address, opts QueryOpts) ([]*Record, error)
	PurgeActions(ctx context.Context, before time.Time) (int64, error)
}

type QueryOpts struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
