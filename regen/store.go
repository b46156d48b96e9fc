package regen

import (
	"context"

	"github.com/xraph/tokenledger/types"
)

type Store interface {
	RecordRegeneration(ctx context.Context, e *Event) error
	ListRegenerations(ctx context.Context, addr types.Address, opts ListOpts) ([]*Event, error)
}

// ListOpts pages results newest first. A zero Address in the store call lists all accounts.
type ListOpts struct {
	Limit  int
	Offset int
}
