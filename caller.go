package tokenledger

import (
	"context"
	"fmt"

	"github.com/xraph/tokenledger/types"
)

type callerKey struct{}

// WithCaller returns a context carrying the identity of the transaction sender.
// Guarded operations read it to decide who is acting.
func WithCaller(ctx context.Context, addr types.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// CallerFrom returns the caller identity stored in ctx.
func CallerFrom(ctx context.Context) (types.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(types.Address)
	if !ok || addr == types.ZeroAddress {
		return types.ZeroAddress, false
	}
	return addr, true
}

// authorize returns the caller when it is one of allowed.
func authorize(ctx context.Context, allowed ...types.Address) (types.Address, error) {
	caller, ok := CallerFrom(ctx)
	if !ok {
		return types.ZeroAddress, fmt.Errorf("%w: no caller in context", ErrUnauthorized)
	}
	for _, a := range allowed {
		if caller == a {
			return caller, nil
		}
	}
	return caller, fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
}
