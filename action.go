package tokenledger

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/tokenledger/action"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// ActionOption decorates a recorded action.
type ActionOption func(*action.Record)

// WithActionKind tags the record with the consumed capability.
func WithActionKind(k action.Kind) ActionOption {
	return func(r *action.Record) {
		r.Kind = k
	}
}

// WithActionMetadata attaches opaque key/value metadata to the record.
func WithActionMetadata(md map[string]string) ActionOption {
	return func(r *action.Record) {
		r.Metadata = md
	}
}

// ──────────────────────────────────────────────────
// Action ledger
// ──────────────────────────────────────────────────

// RecordAction notes amount of off-ledger consumption against addr. It
// raises pending consumption and never touches the balance. The caller must
// be addr itself or the mint authority. Pending consumption is committed
// before this returns. The record reaches the journal through the flush
// worker, or inline when the buffer is full.
func (l *Ledger) RecordAction(ctx context.Context, addr types.Address, amount types.Amount, opts ...ActionOption) (*action.Record, error) {
	if addr == types.ZeroAddress {
		return nil, fmt.Errorf("%w: action subject", ErrInvalidAddress)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: action amount must be positive", ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, err := l.requireWallets(ctx)
	if err != nil {
		return nil, err
	}
	caller, err := authorize(ctx, addr, w.MintAuthority)
	if err != nil {
		return nil, err
	}

	t := l.begin(ctx)
	a, err := t.load(addr)
	if err != nil {
		return nil, err
	}
	pending, overflow := a.PendingConsumption.Add(amount)
	if overflow {
		return nil, fmt.Errorf("%w: pending consumption of %s overflows", ErrInvariantViolation, addr.Hex())
	}
	a.PendingConsumption = pending

	if err := t.commit(); err != nil {
		return nil, err
	}

	rec := &action.Record{
		ID:        id.NewActionID(),
		Address:   addr,
		Caller:    caller,
		Amount:    amount,
		Kind:      action.KindGeneric,
		Timestamp: t.now,
	}
	for _, opt := range opts {
		opt(rec)
	}

	select {
	case l.actionBuffer <- rec:
	default:
		l.logger.Warn("action buffer full, journaling inline",
			"buffer_size", cap(l.actionBuffer),
			"action_id", rec.ID.String(),
		)
		l.flushActionBatch(ctx, []*action.Record{rec})
	}

	l.logger.Debug("action recorded",
		"address", addr.Hex(),
		"caller", caller.Hex(),
		"amount", amount.String(),
		"pending", pending.String(),
	)

	l.plugins.EmitActionRecorded(ctx, rec)
	return rec, nil
}

// FlushActions writes every buffered action record to the store before returning.
func (l *Ledger) FlushActions(ctx context.Context) error {
	if !l.running.Load() {
		l.drainActions(ctx)
		return nil
	}

	done := make(chan struct{})
	select {
	case l.flushReq <- done:
	case <-l.stopChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PurgeActions deletes journaled action records older than before.
// Pending consumption is unaffected.
func (l *Ledger) PurgeActions(ctx context.Context, before time.Time) (int64, error) {
	return l.store.PurgeActions(ctx, before)
}

// actionFlushWorker flushes action records to the store.
func (l *Ledger) actionFlushWorker(ctx context.Context) {
	defer l.wg.Done()

	batch := make([]*action.Record, 0, l.actionBatchSize)
	ticker := time.NewTicker(l.actionFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			// Final flush
			batch = l.drainInto(batch)
			if len(batch) > 0 {
				l.flushActionBatch(ctx, batch)
			}
			return

		case rec := <-l.actionBuffer:
			batch = append(batch, rec)
			if len(batch) >= l.actionBatchSize {
				l.flushActionBatch(ctx, batch)
				batch = make([]*action.Record, 0, l.actionBatchSize)
			}

		case done := <-l.flushReq:
			batch = l.drainInto(batch)
			if len(batch) > 0 {
				l.flushActionBatch(ctx, batch)
				batch = make([]*action.Record, 0, l.actionBatchSize)
			}
			close(done)

		case <-ticker.C:
			if len(batch) > 0 {
				l.flushActionBatch(ctx, batch)
				batch = make([]*action.Record, 0, l.actionBatchSize)
			}
		}
	}
}

// drainInto moves every buffered record into batch without blocking.
func (l *Ledger) drainInto(batch []*action.Record) []*action.Record {
	for {
		select {
		case rec := <-l.actionBuffer:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

// drainActions flushes the buffer when no worker is running.
func (l *Ledger) drainActions(ctx context.Context) {
	if batch := l.drainInto(nil); len(batch) > 0 {
		l.flushActionBatch(ctx, batch)
	}
}

func (l *Ledger) flushActionBatch(ctx context.Context, batch []*action.Record) {
	start := time.Now()

	if err := l.store.RecordActions(ctx, batch); err != nil {
		l.logger.Error("failed to flush action batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	l.plugins.EmitActionsFlushed(ctx, len(batch), elapsed)

	l.logger.Debug("flushed action batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
