// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger records value-bearing ad events. Writes are serialized
// through one writer goroutine; reads go straight to the Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
)

type writeOp struct {
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
}

// Stores key on nanoseconds since the epoch, so ranges are clamped to what
// an int64 can hold.
var (
	minTime = time.Unix(0, math.MinInt64).UTC()
	maxTime = time.Unix(0, math.MaxInt64).UTC()
)

func clamp(t time.Time) time.Time {
	switch {
	case t.Before(minTime):
		return minTime
	case t.After(maxTime):
		return maxTime
	}
	return t
}

// Result is the outcome of an asynchronous Add
type Result struct {
	Transaction Transaction
	Err         error
}

// Ledger is the transaction ledger
type Ledger struct {
	store   Store
	clock   clock.Clock
	metrics *metric.Metrics
	log     log.Logger

	// Unbuffered: a queued write is always picked up by the writer.
	writes    chan writeOp
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a ledger over store and starts its writer
func New(store Store, clk clock.Clock, metrics *metric.Metrics, logger log.Logger) *Ledger {
	l := &Ledger{
		store:   store,
		clock:   clk,
		metrics: metrics,
		log:     logger,
		writes:  make(chan writeOp),
		done:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.writer()

	return l
}

func (l *Ledger) writer() {
	defer l.wg.Done()

	for {
		select {
		case op := <-l.writes:
			if err := op.ctx.Err(); err != nil {
				op.result <- err
				continue
			}
			op.result <- op.run(op.ctx)
		case <-l.done:
			return
		}
	}
}

// submit queues fn on the writer and waits for it. Once queued, the write
// always completes before submit returns so the caller never sees a failure
// for a write that landed.
func (l *Ledger) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	op := writeOp{ctx: ctx, run: fn, result: make(chan error, 1)}

	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.writes <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}

	return <-op.result
}

// Add records a new transaction with a fresh id and created_at = now
func (l *Ledger) Add(ctx context.Context, value decimal.Decimal, confirmationType core.ConfirmationType) (Transaction, error) {
	tx := Transaction{
		ID:               ids.Generate(),
		CreatedAt:        l.clock.Now().UTC(),
		Value:            value,
		ConfirmationType: confirmationType,
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}

	err := l.submit(ctx, func(ctx context.Context) error {
		return l.store.Insert(ctx, []Transaction{tx})
	})
	if err != nil {
		return Transaction{}, l.fail("add", err)
	}

	if l.metrics != nil {
		l.metrics.TransactionsAdded.WithLabelValues(confirmationType.String()).Inc()
	}
	l.log.Debug("transaction added",
		log.String("id", tx.ID.String()),
		log.String("value", tx.Value.String()),
		log.String("confirmation_type", confirmationType.String()))

	return tx, nil
}

// AddAsync runs Add in the background and delivers its outcome on the
// returned channel
func (l *Ledger) AddAsync(ctx context.Context, value decimal.Decimal, confirmationType core.ConfirmationType) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		tx, err := l.Add(ctx, value, confirmationType)
		out <- Result{Transaction: tx, Err: err}
	}()
	return out
}

// Save inserts txs in a single atomic write. Used to import history. Saved
// transactions are never overwritten: if any id already exists the whole
// batch is rejected with ErrDuplicateID.
func (l *Ledger) Save(ctx context.Context, txs []Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return err
		}
	}

	cp := make([]Transaction, len(txs))
	for i, tx := range txs {
		tx.CreatedAt = tx.CreatedAt.UTC()
		if tx.RedeemedAt != nil {
			at := tx.RedeemedAt.UTC()
			tx.RedeemedAt = &at
		}
		cp[i] = tx
	}

	err := l.submit(ctx, func(ctx context.Context) error {
		return l.store.Insert(ctx, cp)
	})
	if err != nil {
		return l.fail("save", err)
	}

	l.log.Info("transactions saved", log.Int("count", len(cp)))
	return nil
}

// GetForDateRange returns the transactions created in [from, to]. No match
// yields an empty slice.
func (l *Ledger) GetForDateRange(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	if to.Before(from) {
		return []Transaction{}, nil
	}

	txs, err := l.store.Range(ctx, clamp(from), clamp(to))
	if err != nil {
		return nil, l.fail("get_for_date_range", err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// Get returns the transaction with id
func (l *Ledger) Get(ctx context.Context, id ids.ID) (Transaction, error) {
	tx, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, err
	}
	if err != nil {
		return Transaction{}, l.fail("get", err)
	}
	return tx, nil
}

// MarkRedeemed sets redeemed_at on an unredeemed transaction
func (l *Ledger) MarkRedeemed(ctx context.Context, id ids.ID, at time.Time) (Transaction, error) {
	at = at.UTC()

	var redeemed Transaction
	err := l.submit(ctx, func(ctx context.Context) error {
		tx, err := l.store.MarkRedeemed(ctx, id, at)
		if err != nil {
			return err
		}
		redeemed = tx
		return nil
	})
	if err != nil {
		return Transaction{}, l.fail("mark_redeemed", err)
	}
	return redeemed, nil
}

// RemoveAll deletes every transaction
func (l *Ledger) RemoveAll(ctx context.Context) error {
	err := l.submit(ctx, func(ctx context.Context) error {
		return l.store.DeleteAll(ctx)
	})
	if err != nil {
		return l.fail("remove_all", err)
	}

	if l.metrics != nil {
		l.metrics.TransactionsRemoved.Inc()
	}
	l.log.Info("all transactions removed")
	return nil
}

// Close stops the writer. The underlying store is left open.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
}

// fail classifies err and records it. Domain errors pass through unchanged;
// store failures are wrapped in ErrPersistence.
func (l *Ledger) fail(op string, err error) error {
	if l.metrics != nil {
		l.metrics.LedgerErrors.WithLabelValues(op).Inc()
	}

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyRedeemed),
		errors.Is(err, ErrRedeemedBeforeCreated),
		errors.Is(err, ErrInvalidTransaction),
		errors.Is(err, ErrDuplicateID),
		errors.Is(err, ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}

	l.log.Warn("ledger operation failed", log.String("op", op), log.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
