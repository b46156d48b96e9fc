// Package extension provides the Forge extension adapter for the token ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tokenledger" or
// "tokenledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/observability"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/store/bolt"
	"github.com/xraph/tokenledger/store/memory"
	"github.com/xraph/tokenledger/tracefeed"
	"github.com/xraph/tokenledger/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tokenledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Partial-lock token ledger with consumption-driven regeneration"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the token ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tokenledger.Ledger
	store      store.Store
	ledgerOpts []tokenledger.Option
}

// New creates a new token ledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tokenledger.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := openStore(e.config)
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildLedgerOpts()
	if err != nil {
		return err
	}

	e.engine = tokenledger.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*tokenledger.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tokenledger: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tokenledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// openStore constructs one of the built-in stores.
func openStore(cfg Config) (store.Store, error) {
	switch cfg.Store {
	case "", StoreMemory:
		return memory.New(), nil
	case StoreBolt:
		if cfg.BoltPath == "" {
			return nil, tokenledger.ValidationError{Field: "bolt_path", Message: "required for the bolt store"}
		}
		return bolt.Open(cfg.BoltPath, nil)
	default:
		return nil, tokenledger.ValidationError{
			Field:   "store",
			Message: fmt.Sprintf("unknown driver %q; pass SQL and Mongo stores with WithStore", cfg.Store),
		}
	}
}

// buildLedgerOpts constructs tokenledger.Option values from the resolved config.
// Pass-through options are appended last so they win.
func (e *Extension) buildLedgerOpts() ([]tokenledger.Option, error) {
	cfg := e.config
	opts := make([]tokenledger.Option, 0, len(e.ledgerOpts)+10)

	if cfg.DisableMigrate {
		opts = append(opts, tokenledger.WithAutoMigrate(false))
	}

	if cfg.PledgeFund != "" {
		addr, err := types.ParseAddress(cfg.PledgeFund)
		if err != nil {
			return nil, tokenledger.ValidationError{Field: "pledge_fund", Message: err.Error()}
		}
		opts = append(opts, tokenledger.WithPledgeFund(addr))
	}

	if cfg.SeedAmount != "" {
		seed, err := types.Parse(cfg.SeedAmount)
		if err != nil {
			return nil, tokenledger.ValidationError{Field: "seed_amount", Message: err.Error()}
		}
		opts = append(opts, tokenledger.WithSeedAmount(seed))
	}

	if cfg.GenesisSupply != "" {
		supply, err := types.Parse(cfg.GenesisSupply)
		if err != nil {
			return nil, tokenledger.ValidationError{Field: "genesis_supply", Message: err.Error()}
		}
		opts = append(opts, tokenledger.WithGenesisSupply(supply))
	}

	opts = append(opts,
		tokenledger.WithSplit(cfg.Split),
		tokenledger.WithRegenParams(regen.Params{
			Interval:     cfg.RegenInterval,
			CapToPending: !cfg.DisablePendingCap,
		}),
		tokenledger.WithActionJournal(cfg.ActionBatchSize, cfg.ActionFlushInterval),
		tokenledger.WithActionBuffer(cfg.ActionBufferSize),
	)

	if cfg.EnableMetrics {
		factory := observability.NewPrometheusFactory(nil)
		opts = append(opts, tokenledger.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	if cfg.TraceFeed.Path != "" {
		feed, err := tracefeed.Open(cfg.TraceFeed)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tokenledger.WithPlugin(feed))
	}

	return append(opts, e.ledgerOpts...), nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tokenledger: configuration is required but not found in config files; " +
				"ensure 'extensions.tokenledger' or 'tokenledger' key exists in your config")
		}

		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tokenledger: configuration loaded",
		forge.F("store", e.config.Store),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("pledge_fund", e.config.PledgeFund),
		forge.F("regen_interval", e.config.RegenInterval),
		forge.F("disable_pending_cap", e.config.DisablePendingCap),
		forge.F("action_batch_size", e.config.ActionBatchSize),
		forge.F("action_flush_interval", e.config.ActionFlushInterval),
		forge.F("enable_metrics", e.config.EnableMetrics),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.tokenledger", "tokenledger"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("tokenledger: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("tokenledger: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store == "" {
		cfg.Store = defaults.Store
	}
	if cfg.SeedAmount == "" {
		cfg.SeedAmount = defaults.SeedAmount
	}
	if cfg.RegenInterval == 0 {
		cfg.RegenInterval = defaults.RegenInterval
	}
	if cfg.ActionBatchSize == 0 {
		cfg.ActionBatchSize = defaults.ActionBatchSize
	}
	if cfg.ActionFlushInterval == 0 {
		cfg.ActionFlushInterval = defaults.ActionFlushInterval
	}
	if cfg.ActionBufferSize == 0 {
		cfg.ActionBufferSize = defaults.ActionBufferSize
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and
// programmatic bool flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisablePendingCap {
		yamlConfig.DisablePendingCap = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}

	// String fields: YAML takes precedence.
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&yamlConfig.Store, programmaticConfig.Store)
	fill(&yamlConfig.BoltPath, programmaticConfig.BoltPath)
	fill(&yamlConfig.PledgeFund, programmaticConfig.PledgeFund)
	fill(&yamlConfig.SeedAmount, programmaticConfig.SeedAmount)
	fill(&yamlConfig.GenesisSupply, programmaticConfig.GenesisSupply)
	fill(&yamlConfig.TraceFeed.Path, programmaticConfig.TraceFeed.Path)

	if yamlConfig.Split == (regen.Split{}) {
		yamlConfig.Split = programmaticConfig.Split
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.RegenInterval == 0 {
		yamlConfig.RegenInterval = programmaticConfig.RegenInterval
	}
	if yamlConfig.ActionBatchSize == 0 {
		yamlConfig.ActionBatchSize = programmaticConfig.ActionBatchSize
	}
	if yamlConfig.ActionFlushInterval == 0 {
		yamlConfig.ActionFlushInterval = programmaticConfig.ActionFlushInterval
	}
	if yamlConfig.ActionBufferSize == 0 {
		yamlConfig.ActionBufferSize = programmaticConfig.ActionBufferSize
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
