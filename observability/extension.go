// Package observability provides a metrics extension for the token ledger
// that records event counts and volumes through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnInitialized          = (*MetricsExtension)(nil)
	_ plugin.OnSeedGranted          = (*MetricsExtension)(nil)
	_ plugin.OnLockedTokensUnlocked = (*MetricsExtension)(nil)
	_ plugin.OnActionRecorded       = (*MetricsExtension)(nil)
	_ plugin.OnActionsFlushed       = (*MetricsExtension)(nil)
	_ plugin.OnRegenerated          = (*MetricsExtension)(nil)
	_ plugin.OnTransferred          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide metrics.
// Register it as a ledger plugin to track issuance and movement.
type MetricsExtension struct {
	factory MetricFactory

	// Governance
	Initialized Counter

	// Issuance
	SeedsGranted      Counter
	SeedTokensMinted  Counter
	DevTokensUnlocked Counter

	// Consumption
	ActionsRecorded    Counter
	ActionAmount       Histogram
	ActionBatchSize    Histogram
	ActionFlushLatency Histogram

	// Regeneration
	Regenerations        Counter
	PartialRegenerations Counter
	RegeneratedTokens    Counter
	PoolTokensMinted     Counter
	SeedDerivedFlagged   Counter
	RegenerationAmount   Histogram

	// Movements
	Transfers         Counter
	Gifts             Counter
	DevGrants         Counter
	PledgeSpends      Counter
	TransferredTokens Counter
	TransferAmount    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		Initialized: factory.Counter("tokenledger.initialized"),

		SeedsGranted:      factory.Counter("tokenledger.seed.granted"),
		SeedTokensMinted:  factory.Counter("tokenledger.seed.tokens"),
		DevTokensUnlocked: factory.Counter("tokenledger.dev.unlocked.tokens"),

		ActionsRecorded:    factory.Counter("tokenledger.action.recorded"),
		ActionAmount:       factory.Histogram("tokenledger.action.amount"),
		ActionBatchSize:    factory.Histogram("tokenledger.action.batch.size"),
		ActionFlushLatency: factory.Histogram("tokenledger.action.flush.latency_ms"),

		Regenerations:        factory.Counter("tokenledger.regen.completed"),
		PartialRegenerations: factory.Counter("tokenledger.regen.partial"),
		RegeneratedTokens:    factory.Counter("tokenledger.regen.tokens"),
		PoolTokensMinted:     factory.Counter("tokenledger.regen.pool.tokens"),
		SeedDerivedFlagged:   factory.Counter("tokenledger.regen.seed_derived.tokens"),
		RegenerationAmount:   factory.Histogram("tokenledger.regen.amount"),

		Transfers:         factory.Counter("tokenledger.transfer.completed"),
		Gifts:             factory.Counter("tokenledger.gift.completed"),
		DevGrants:         factory.Counter("tokenledger.dev.granted"),
		PledgeSpends:      factory.Counter("tokenledger.pledge.spent"),
		TransferredTokens: factory.Counter("tokenledger.transfer.tokens"),
		TransferAmount:    factory.Histogram("tokenledger.transfer.amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnInitialized implements plugin.OnInitialized.
func (m *MetricsExtension) OnInitialized(_ context.Context, _ *account.Wallets) error {
	m.Initialized.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Issuance hooks
// ──────────────────────────────────────────────────

// OnSeedGranted implements plugin.OnSeedGranted.
func (m *MetricsExtension) OnSeedGranted(_ context.Context, _ types.Address, amount types.Amount) error {
	m.SeedsGranted.Inc()
	m.SeedTokensMinted.Add(amount.Float64())
	return nil
}

// OnLockedTokensUnlocked implements plugin.OnLockedTokensUnlocked.
func (m *MetricsExtension) OnLockedTokensUnlocked(_ context.Context, _ types.Address, amount types.Amount) error {
	m.DevTokensUnlocked.Add(amount.Float64())
	return nil
}

// ──────────────────────────────────────────────────
// Consumption hooks
// ──────────────────────────────────────────────────

// OnActionRecorded implements plugin.OnActionRecorded.
func (m *MetricsExtension) OnActionRecorded(_ context.Context, rec *action.Record) error {
	m.ActionsRecorded.Inc()
	m.ActionAmount.Observe(rec.Amount.Float64())
	return nil
}

// OnActionsFlushed implements plugin.OnActionsFlushed.
func (m *MetricsExtension) OnActionsFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.ActionBatchSize.Observe(float64(count))
	m.ActionFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Regeneration hooks
// ──────────────────────────────────────────────────

// OnRegenerated implements plugin.OnRegenerated.
func (m *MetricsExtension) OnRegenerated(_ context.Context, e *regen.Event) error {
	m.Regenerations.Inc()
	if e.Amount.LessThan(e.Requested) {
		m.PartialRegenerations.Inc()
	}
	m.RegeneratedTokens.Add(e.Amount.Float64())
	m.RegenerationAmount.Observe(e.Amount.Float64())

	pools := e.Shares.Pledge.Float64() + e.Shares.DAO.Float64() + e.Shares.Founder.Float64()
	if pools > 0 {
		m.PoolTokensMinted.Add(pools)
	}
	if e.SeedDerived.IsPositive() {
		m.SeedDerivedFlagged.Add(e.SeedDerived.Float64())
	}
	return nil
}

// ──────────────────────────────────────────────────
// Movement hooks
// ──────────────────────────────────────────────────

// OnTransferred implements plugin.OnTransferred.
func (m *MetricsExtension) OnTransferred(_ context.Context, r *transfer.Record) error {
	switch r.Kind {
	case transfer.KindGift:
		m.Gifts.Inc()
	case transfer.KindDevGrant:
		m.DevGrants.Inc()
	case transfer.KindPledgeSpend:
		m.PledgeSpends.Inc()
	default:
		m.Transfers.Inc()
	}
	m.TransferredTokens.Add(r.Amount.Float64())
	m.TransferAmount.Observe(r.Amount.Float64())
	return nil
}
