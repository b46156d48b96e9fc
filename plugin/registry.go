package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so each emit only walks interested plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onInitialized          []OnInitialized
	onSeedGranted          []OnSeedGranted
	onLockedTokensUnlocked []OnLockedTokensUnlocked
	onActionRecorded       []OnActionRecorded
	onActionsFlushed       []OnActionsFlushed
	onRegenerated          []OnRegenerated
	onTransferred          []OnTransferred
	onGifted               []OnGifted
	onDevTokensGranted     []OnDevTokensGranted
	onPledgeSpent          []OnPledgeSpent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInitialized); ok {
		r.onInitialized = append(r.onInitialized, v)
	}
	if v, ok := p.(OnSeedGranted); ok {
		r.onSeedGranted = append(r.onSeedGranted, v)
	}
	if v, ok := p.(OnLockedTokensUnlocked); ok {
		r.onLockedTokensUnlocked = append(r.onLockedTokensUnlocked, v)
	}
	if v, ok := p.(OnActionRecorded); ok {
		r.onActionRecorded = append(r.onActionRecorded, v)
	}
	if v, ok := p.(OnActionsFlushed); ok {
		r.onActionsFlushed = append(r.onActionsFlushed, v)
	}
	if v, ok := p.(OnRegenerated); ok {
		r.onRegenerated = append(r.onRegenerated, v)
	}
	if v, ok := p.(OnTransferred); ok {
		r.onTransferred = append(r.onTransferred, v)
	}
	if v, ok := p.(OnGifted); ok {
		r.onGifted = append(r.onGifted, v)
	}
	if v, ok := p.(OnDevTokensGranted); ok {
		r.onDevTokensGranted = append(r.onDevTokensGranted, v)
	}
	if v, ok := p.(OnPledgeSpent); ok {
		r.onPledgeSpent = append(r.onPledgeSpent, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name  string
	iface reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnInitialized", reflect.TypeOf((*OnInitialized)(nil)).Elem()},
	{"OnSeedGranted", reflect.TypeOf((*OnSeedGranted)(nil)).Elem()},
	{"OnLockedTokensUnlocked", reflect.TypeOf((*OnLockedTokensUnlocked)(nil)).Elem()},
	{"OnActionRecorded", reflect.TypeOf((*OnActionRecorded)(nil)).Elem()},
	{"OnActionsFlushed", reflect.TypeOf((*OnActionsFlushed)(nil)).Elem()},
	{"OnRegenerated", reflect.TypeOf((*OnRegenerated)(nil)).Elem()},
	{"OnTransferred", reflect.TypeOf((*OnTransferred)(nil)).Elem()},
	{"OnGifted", reflect.TypeOf((*OnGifted)(nil)).Elem()},
	{"OnDevTokensGranted", reflect.TypeOf((*OnDevTokensGranted)(nil)).Elem()},
	{"OnPledgeSpent", reflect.TypeOf((*OnPledgeSpent)(nil)).Elem()},
}

// implementedInterfaces returns the hook names implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.iface) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInit", plugins, func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	dispatch(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitInitialized emits the one-time initialization event.
func (r *Registry) EmitInitialized(ctx context.Context, w *account.Wallets) {
	r.mu.RLock()
	plugins := r.onInitialized
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInitialized", plugins, func(p OnInitialized) error {
		return p.OnInitialized(ctx, w)
	})
}

// EmitSeedGranted emits a seed grant event.
func (r *Registry) EmitSeedGranted(ctx context.Context, addr types.Address, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onSeedGranted
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSeedGranted", plugins, func(p OnSeedGranted) error {
		return p.OnSeedGranted(ctx, addr, amount)
	})
}

// EmitLockedTokensUnlocked emits an unlock event.
func (r *Registry) EmitLockedTokensUnlocked(ctx context.Context, addr types.Address, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onLockedTokensUnlocked
	r.mu.RUnlock()

	dispatch(ctx, r, "OnLockedTokensUnlocked", plugins, func(p OnLockedTokensUnlocked) error {
		return p.OnLockedTokensUnlocked(ctx, addr, amount)
	})
}

// EmitActionRecorded emits an action recorded event.
func (r *Registry) EmitActionRecorded(ctx context.Context, rec *action.Record) {
	r.mu.RLock()
	plugins := r.onActionRecorded
	r.mu.RUnlock()

	dispatch(ctx, r, "OnActionRecorded", plugins, func(p OnActionRecorded) error {
		return p.OnActionRecorded(ctx, rec)
	})
}

// EmitActionsFlushed emits a journal flush event.
func (r *Registry) EmitActionsFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onActionsFlushed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnActionsFlushed", plugins, func(p OnActionsFlushed) error {
		return p.OnActionsFlushed(ctx, count, elapsed)
	})
}

// EmitRegenerated emits a regeneration event.
func (r *Registry) EmitRegenerated(ctx context.Context, e *regen.Event) {
	r.mu.RLock()
	plugins := r.onRegenerated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnRegenerated", plugins, func(p OnRegenerated) error {
		return p.OnRegenerated(ctx, e)
	})
}

// EmitTransferred emits OnTransferred and then the kind-specific hook.
func (r *Registry) EmitTransferred(ctx context.Context, rec *transfer.Record) {
	r.mu.RLock()
	transferred := r.onTransferred
	gifted := r.onGifted
	devGranted := r.onDevTokensGranted
	pledgeSpent := r.onPledgeSpent
	r.mu.RUnlock()

	dispatch(ctx, r, "OnTransferred", transferred, func(p OnTransferred) error {
		return p.OnTransferred(ctx, rec)
	})

	switch rec.Kind {
	case transfer.KindGift:
		dispatch(ctx, r, "OnGifted", gifted, func(p OnGifted) error {
			return p.OnGifted(ctx, rec)
		})
	case transfer.KindDevGrant:
		dispatch(ctx, r, "OnDevTokensGranted", devGranted, func(p OnDevTokensGranted) error {
			return p.OnDevTokensGranted(ctx, rec)
		})
	case transfer.KindPledgeSpend:
		dispatch(ctx, r, "OnPledgeSpent", pledgeSpent, func(p OnPledgeSpent) error {
			return p.OnPledgeSpent(ctx, rec)
		})
	}
}

// dispatch calls fn for each plugin, logging failures without stopping.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls fn with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
