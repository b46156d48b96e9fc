package extension

import (
	"time"

	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/tracefeed"
)

// Store drivers the extension can construct on its own. SQL and Mongo
// stores need a grove database and are passed in with WithStore.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// Config holds the token ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tokenledger" or "tokenledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Store selects the built-in store driver when none is set with
	// WithStore: "memory" (default) or "bolt".
	Store string `json:"store" mapstructure:"store" yaml:"store"`

	// BoltPath is the database file for the bolt store.
	BoltPath string `json:"bolt_path" mapstructure:"bolt_path" yaml:"bolt_path"`

	// PledgeFund is the hex address of the pledge fund stored by Initialize.
	PledgeFund string `json:"pledge_fund" mapstructure:"pledge_fund" yaml:"pledge_fund"`

	// SeedAmount is the whole-token seed grant (default: "1").
	SeedAmount string `json:"seed_amount" mapstructure:"seed_amount" yaml:"seed_amount"`

	// GenesisSupply is minted to the mint authority at Initialize (default: none).
	GenesisSupply string `json:"genesis_supply" mapstructure:"genesis_supply" yaml:"genesis_supply"`

	// Split is the pool share minted alongside each regeneration.
	Split regen.Split `json:"split" mapstructure:"split" yaml:"split"`

	// RegenInterval is the minimum time between regenerations of one account (default: 24h).
	RegenInterval time.Duration `json:"regen_interval" mapstructure:"regen_interval" yaml:"regen_interval"`

	// DisablePendingCap lets a regeneration mint more than the pending consumption.
	DisablePendingCap bool `json:"disable_pending_cap" mapstructure:"disable_pending_cap" yaml:"disable_pending_cap"`

	// ActionBatchSize is the number of action records to buffer before
	// flushing to the store (default: 100).
	ActionBatchSize int `json:"action_batch_size" mapstructure:"action_batch_size" yaml:"action_batch_size"`

	// ActionFlushInterval is how frequently the action buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	ActionFlushInterval time.Duration `json:"action_flush_interval" mapstructure:"action_flush_interval" yaml:"action_flush_interval"`

	// ActionBufferSize bounds the records waiting for the journal (default: 10000).
	ActionBufferSize int `json:"action_buffer_size" mapstructure:"action_buffer_size" yaml:"action_buffer_size"`

	// EnableMetrics registers the Prometheus metrics plugin.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics"`

	// TraceFeed mirrors ledger events into a rotating file when Path is set.
	TraceFeed tracefeed.Config `json:"trace_feed" mapstructure:"trace_feed" yaml:"trace_feed"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store:               StoreMemory,
		SeedAmount:          "1",
		RegenInterval:       regen.DefaultInterval,
		ActionBatchSize:     100,
		ActionFlushInterval: 5 * time.Second,
		ActionBufferSize:    10000,
	}
}
