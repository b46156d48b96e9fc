package extension

import (
	"time"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store"
)

// Option configures the token ledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine. It takes precedence over
// the configured store driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a tokenledger.Option through to the underlying engine.
func WithLedgerOption(opt tokenledger.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, tokenledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBoltStore selects the bolt store at path.
func WithBoltStore(path string) Option {
	return func(e *Extension) {
		e.config.Store = StoreBolt
		e.config.BoltPath = path
	}
}

// WithPledgeFund sets the pledge fund address as a hex string.
func WithPledgeFund(addr string) Option {
	return func(e *Extension) { e.config.PledgeFund = addr }
}

// WithSplit sets the regeneration pool shares.
func WithSplit(s regen.Split) Option {
	return func(e *Extension) { e.config.Split = s }
}

// WithRegenInterval sets the minimum time between regenerations.
func WithRegenInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.RegenInterval = d }
}

// WithActionBatchSize sets the number of action records to buffer before flushing.
func WithActionBatchSize(size int) Option {
	return func(e *Extension) { e.config.ActionBatchSize = size }
}

// WithActionFlushInterval sets how frequently the action buffer is flushed.
func WithActionFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ActionFlushInterval = d }
}

// WithMetrics registers the Prometheus metrics plugin.
func WithMetrics() Option {
	return func(e *Extension) { e.config.EnableMetrics = true }
}

// WithTraceFeed mirrors ledger events into a rotating file at path.
func WithTraceFeed(path string) Option {
	return func(e *Extension) { e.config.TraceFeed.Path = path }
}
