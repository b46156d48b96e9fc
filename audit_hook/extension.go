// Package audithook bridges ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tokenledger/account"
	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/regen"
	"github.com/xraph/tokenledger/transfer"
	"github.com/xraph/tokenledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnInitialized          = (*Extension)(nil)
	_ plugin.OnSeedGranted          = (*Extension)(nil)
	_ plugin.OnLockedTokensUnlocked = (*Extension)(nil)
	_ plugin.OnActionRecorded       = (*Extension)(nil)
	_ plugin.OnActionsFlushed       = (*Extension)(nil)
	_ plugin.OnRegenerated          = (*Extension)(nil)
	_ plugin.OnTransferred          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Governance hooks
// ──────────────────────────────────────────────────

// OnInitialized implements plugin.OnInitialized.
func (e *Extension) OnInitialized(ctx context.Context, w *account.Wallets) error {
	return e.record(ctx, ActionLedgerInitialized, SeverityWarning, OutcomeSuccess,
		ResourceLedger, "", CategoryGovernance, nil,
		"mint_authority", w.MintAuthority.Hex(),
		"founder", w.Founder.Hex(),
		"dev_pool", w.DevPool.Hex(),
		"dao_treasury", w.DAOTreasury.Hex(),
		"pledge_fund", w.PledgeFund.Hex(),
	)
}

// ──────────────────────────────────────────────────
// Issuance hooks
// ──────────────────────────────────────────────────

// OnSeedGranted implements plugin.OnSeedGranted.
func (e *Extension) OnSeedGranted(ctx context.Context, addr types.Address, amount types.Amount) error {
	return e.record(ctx, ActionSeedGranted, SeverityInfo, OutcomeSuccess,
		ResourceAccount, addr.Hex(), CategoryIssuance, nil,
		"amount", amount.String(),
	)
}

// OnLockedTokensUnlocked implements plugin.OnLockedTokensUnlocked.
func (e *Extension) OnLockedTokensUnlocked(ctx context.Context, addr types.Address, amount types.Amount) error {
	return e.record(ctx, ActionTokensUnlocked, SeverityWarning, OutcomeSuccess,
		ResourceAccount, addr.Hex(), CategoryIssuance, nil,
		"amount", amount.String(),
	)
}

// OnRegenerated implements plugin.OnRegenerated.
func (e *Extension) OnRegenerated(ctx context.Context, ev *regen.Event) error {
	outcome := OutcomeSuccess
	if ev.Amount.LessThan(ev.Requested) {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionRegenerated, SeverityInfo, outcome,
		ResourceRegeneration, ev.ID.String(), CategoryIssuance, nil,
		"address", ev.Address.Hex(),
		"caller", ev.Caller.Hex(),
		"requested", ev.Requested.String(),
		"amount", ev.Amount.String(),
		"pledge_share", ev.Shares.Pledge.String(),
		"dao_share", ev.Shares.DAO.String(),
		"founder_share", ev.Shares.Founder.String(),
		"seed_derived", ev.SeedDerived.String(),
		"self_service", ev.SelfService,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnActionRecorded implements plugin.OnActionRecorded.
func (e *Extension) OnActionRecorded(ctx context.Context, rec *action.Record) error {
	return e.record(ctx, ActionActionRecorded, SeverityInfo, OutcomeSuccess,
		ResourceAction, rec.ID.String(), CategoryUsage, nil,
		"address", rec.Address.Hex(),
		"caller", rec.Caller.Hex(),
		"amount", rec.Amount.String(),
		"kind", int(rec.Kind),
	)
}

// OnActionsFlushed implements plugin.OnActionsFlushed.
func (e *Extension) OnActionsFlushed(ctx context.Context, count int, elapsed time.Duration) error {
	return e.record(ctx, ActionActionsFlushed, SeverityInfo, OutcomeSuccess,
		ResourceAction, "", CategoryUsage, nil,
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Movement hooks
// ──────────────────────────────────────────────────

// OnTransferred implements plugin.OnTransferred. The action name follows
// the movement kind so each kind can be enabled on its own.
func (e *Extension) OnTransferred(ctx context.Context, r *transfer.Record) error {
	act, severity := ActionTransferred, SeverityInfo
	switch r.Kind {
	case transfer.KindGift:
		act = ActionGifted
	case transfer.KindDevGrant:
		act, severity = ActionDevTokensGranted, SeverityWarning
	case transfer.KindPledgeSpend:
		act, severity = ActionPledgeSpent, SeverityWarning
	}

	kv := []any{
		"from", r.From.Hex(),
		"to", r.To.Hex(),
		"amount", r.Amount.String(),
	}
	if r.Memo != "" {
		kv = append(kv, "memo", r.Memo)
	}
	return e.record(ctx, act, severity, OutcomeSuccess,
		ResourceTransfer, r.ID.String(), CategoryMovement, nil,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
