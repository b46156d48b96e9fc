// Package plugin provides the notification sink for ledger events.
// Plugins implement any subset of the hook interfaces below; the registry
// discovers them by type assertion at registration time.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *tokenledger.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnInitialized is called once, after the wallet configuration is stored.
type OnInitialized interface {
	Plugin
	OnInitialized(ctx context.Context, w *account.Wallets) error
}

// ──────────────────────────────────────────────────
// Lock lifecycle hooks
// ──────────────────────────────────────────────────

// OnSeedGranted is called after a seed grant commits.
type OnSeedGranted interface {
	Plugin
	OnSeedGranted(ctx context.Context, addr types.Address, amount types.Amount) error
}

// OnLockedTokensUnlocked is called after developer-grant locks are released.
type OnLockedTokensUnlocked interface {
	Plugin
	OnLockedTokensUnlocked(ctx context.Context, addr types.Address, amount types.Amount) error
}

// ──────────────────────────────────────────────────
// Consumption and regeneration hooks
// ──────────────────────────────────────────────────

// OnActionRecorded is called after pending consumption is raised.
type OnActionRecorded interface {
	Plugin
	OnActionRecorded(ctx context.Context, rec *action.Record) error
}

// OnActionsFlushed is called when journaled actions reach the store.
type OnActionsFlushed interface {
	Plugin
	OnActionsFlushed(ctx context.Context, count int, elapsed time.Duration) error
}

// OnRegenerated is called with the full share breakdown of a regeneration.
type OnRegenerated interface {
	Plugin
	OnRegenerated(ctx context.Context, e *regen.Event) error
}

// ──────────────────────────────────────────────────
// Movement hooks
// ──────────────────────────────────────────────────

// OnTransferred is called for every committed balance movement, whatever its kind.
type OnTransferred interface {
	Plugin
	OnTransferred(ctx context.Context, r *transfer.Record) error
}

// OnGifted is called for gift transfers.
type OnGifted interface {
	Plugin
	OnGifted(ctx context.Context, r *transfer.Record) error
}

// OnDevTokensGranted is called for locked grants out of the developer pool.
type OnDevTokensGranted interface {
	Plugin
	OnDevTokensGranted(ctx context.Context, r *transfer.Record) error
}

// OnPledgeSpent is called for spends out of the pledge fund.
type OnPledgeSpent interface {
	Plugin
	OnPledgeSpent(ctx context.Context, r *transfer.Record) error
}
