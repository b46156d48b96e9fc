package tokenledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/types"
)

// Default configuration values.
const (
	DefaultActionBatchSize     = 100
	DefaultActionFlushInterval = 5 * time.Second
	DefaultActionBufferSize    = 10000
)

// Ledger is the partial-lock token engine.
//
// Every mutating operation runs under one mutex, so the ledger applies
// calls in a single global order. Each call stages its account changes
// and commits them with one atomic store write.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	autoMigrate bool

	mu      sync.Mutex
	wallets atomic.Pointer[account.Wallets]

	// Protocol configuration
	seedAmount    types.Amount
	genesisSupply types.Amount
	pledgeFund    types.Address
	split         regen.Split
	params        regen.Params

	// Action journal
	actionBuffer        chan *action.Record
	actionBufferSize    int
	actionBatchSize     int
	actionFlushInterval time.Duration
	flushReq            chan chan struct{}
	stopChan            chan struct{}
	stopOnce            sync.Once
	running             atomic.Bool
	wg                  sync.WaitGroup
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:               s,
		plugins:             plugin.NewRegistry(),
		logger:              slog.Default(),
		now:                 time.Now,
		autoMigrate:         true,
		seedAmount:          types.Tokens(1),
		genesisSupply:       types.Zero(),
		split:               regen.DefaultSplit,
		params:              regen.DefaultParams(),
		actionBufferSize:    DefaultActionBufferSize,
		actionBatchSize:     DefaultActionBatchSize,
		actionFlushInterval: DefaultActionFlushInterval,
		flushReq:            make(chan chan struct{}),
		stopChan:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.actionBuffer = make(chan *action.Record, l.actionBufferSize)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the wall clock. Tests use it to step past the regeneration interval.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithAutoMigrate controls whether Start runs store migrations. Defaults to true.
func WithAutoMigrate(enabled bool) Option {
	return func(l *Ledger) {
		l.autoMigrate = enabled
	}
}

// WithRegenParams sets the regeneration interval and pending cap.
func WithRegenParams(p regen.Params) Option {
	return func(l *Ledger) {
		l.params = p
	}
}

// WithSplit sets the stakeholder pool ratios minted alongside each regeneration.
func WithSplit(s regen.Split) Option {
	return func(l *Ledger) {
		l.split = s
	}
}

// WithPledgeFund sets the pledge fund address stored by Initialize.
func WithPledgeFund(addr types.Address) Option {
	return func(l *Ledger) {
		l.pledgeFund = addr
	}
}

// WithSeedAmount overrides the one-token seed grant.
func WithSeedAmount(a types.Amount) Option {
	return func(l *Ledger) {
		l.seedAmount = a
	}
}

// WithGenesisSupply mints a transferable supply to the mint authority at Initialize.
func WithGenesisSupply(a types.Amount) Option {
	return func(l *Ledger) {
		l.genesisSupply = a
	}
}

// WithActionJournal configures batching of the action journal.
func WithActionJournal(batchSize int, flushInterval time.Duration) Option {
	return func(l *Ledger) {
		l.actionBatchSize = batchSize
		l.actionFlushInterval = flushInterval
	}
}

// WithActionBuffer sets how many action records may wait for the journal worker.
func WithActionBuffer(size int) Option {
	return func(l *Ledger) {
		l.actionBufferSize = size
	}
}

// validateConfig checks option values that New cannot reject.
func (l *Ledger) validateConfig() error {
	if err := l.split.Validate(); err != nil {
		return ValidationError{Field: "split", Message: err.Error()}
	}
	if l.params.Interval < 0 {
		return ValidationError{Field: "regen_interval", Message: "must not be negative"}
	}
	if l.seedAmount.IsZero() {
		return ValidationError{Field: "seed_amount", Message: "must be positive"}
	}
	if l.actionBatchSize <= 0 {
		return ValidationError{Field: "action_batch_size", Message: "must be positive"}
	}
	if l.actionFlushInterval <= 0 {
		return ValidationError{Field: "action_flush_interval", Message: "must be positive"}
	}
	return nil
}

// Start migrates the store, loads the wallet configuration and begins
// the action journal worker.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.validateConfig(); err != nil {
		return err
	}

	if l.autoMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("tokenledger: migrate: %w", err)
		}
	}

	w, err := l.store.GetWallets(ctx)
	switch {
	case err == nil:
		l.wallets.Store(w)
	case errors.Is(err, ErrNotFound):
		l.logger.Info("ledger not initialized yet")
	default:
		return fmt.Errorf("tokenledger: load wallets: %w", err)
	}

	l.plugins.EmitInit(ctx, l)

	if l.running.CompareAndSwap(false, true) {
		l.wg.Add(1)
		go l.actionFlushWorker(context.WithoutCancel(ctx))
	}

	l.logger.Info("ledger started",
		"initialized", w != nil,
		"regen_interval", l.params.Interval,
		"cap_to_pending", l.params.CapToPending,
		"pledge_bps", l.split.PledgeBps,
		"dao_bps", l.split.DAOBps,
		"founder_bps", l.split.FounderBps,
		"batch_size", l.actionBatchSize,
		"flush_interval", l.actionFlushInterval,
	)

	return nil
}

// Stop flushes the action journal, notifies plugins and closes the store.
func (l *Ledger) Stop() error {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()

	if l.running.CompareAndSwap(true, false) {
		l.logger.Info("ledger stopped")
	} else {
		l.drainActions(context.Background())
	}

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry {
	return l.plugins
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store {
	return l.store
}

// requireWallets returns the wallet configuration, loading it on first use.
func (l *Ledger) requireWallets(ctx context.Context) (*account.Wallets, error) {
	if w := l.wallets.Load(); w != nil {
		return w, nil
	}

	w, err := l.store.GetWallets(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("tokenledger: load wallets: %w", err)
	}

	l.wallets.Store(w)
	return w, nil
}
