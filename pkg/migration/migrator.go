// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/storage"
)

var ErrAlreadyMigrated = errors.New("legacy state already migrated")

var markerKey = []byte("migration/legacy_rewards")

// Result summarizes a migration run
type Result struct {
	ThisMonth          int
	UnredeemedPrevious *ledger.Transaction
	RedeemedLastMonth  *ledger.Transaction
}

// MarkerStore keeps the migrated marker. *storage.Storage implements it.
type MarkerStore interface {
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
}

var _ MarkerStore = (*storage.Storage)(nil)

// Migrator performs the one-time legacy import
type Migrator struct {
	ledger *ledger.Ledger
	db     MarkerStore
	clock  clock.Clock
	log    log.Logger
}

func NewMigrator(l *ledger.Ledger, db MarkerStore, clk clock.Clock, logger log.Logger) *Migrator {
	return &Migrator{ledger: l, db: db, clock: clk, log: logger}
}

// IsMigrated reports whether a migration already ran
func (m *Migrator) IsMigrated() (bool, error) {
	return m.db.Has(markerKey)
}

// Migrate writes this month's transactions plus the non-zero summaries in a
// single ledger write, then records a marker so later runs are rejected.
func (m *Migrator) Migrate(ctx context.Context, state State) (Result, error) {
	migrated, err := m.IsMigrated()
	if err != nil {
		return Result{}, fmt.Errorf("read migration marker: %w", err)
	}
	if migrated {
		return Result{}, ErrAlreadyMigrated
	}

	now := m.clock.Now().UTC()

	thisMonth := GetTransactionsForThisMonth(state.Transactions, now)
	txs := append([]ledger.Transaction(nil), thisMonth...)

	var result Result
	result.ThisMonth = len(thisMonth)

	unredeemed := BuildUnredeemedTransactionForPreviousMonths(GetTransactionsForPreviousMonths(state.Transactions, now), now)
	if !unredeemed.Value.IsZero() {
		txs = append(txs, unredeemed)
		result.UnredeemedPrevious = &unredeemed
	}

	redeemed := BuildRedeemedTransactionForLastMonth(state.Payments, now)
	if !redeemed.Value.IsZero() {
		txs = append(txs, redeemed)
		result.RedeemedLastMonth = &redeemed
	}

	// Every imported id is stable, so a run whose ledger write landed but
	// whose marker write failed is refused here rather than counted twice.
	err = m.ledger.Save(ctx, txs)
	if errors.Is(err, ledger.ErrDuplicateID) {
		landed, lerr := m.landed(ctx, txs)
		if lerr != nil {
			return Result{}, lerr
		}
		if !landed {
			return Result{}, err
		}
		m.log.Warn("legacy state already in ledger, restoring marker", log.Error(err))
		if err := m.writeMarker(now); err != nil {
			return Result{}, err
		}
		return Result{}, ErrAlreadyMigrated
	}
	if err != nil {
		return Result{}, err
	}

	if err := m.writeMarker(now); err != nil {
		return Result{}, err
	}

	m.log.Info("legacy state migrated",
		log.Int("this_month", result.ThisMonth),
		log.Bool("unredeemed_previous", result.UnredeemedPrevious != nil),
		log.Bool("redeemed_last_month", result.RedeemedLastMonth != nil))

	return result, nil
}

func (m *Migrator) writeMarker(now time.Time) error {
	if err := m.db.Put(markerKey, []byte(now.Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("write migration marker: %w", err)
	}
	return nil
}

// landed reports whether every one of txs is already in the ledger
func (m *Migrator) landed(ctx context.Context, txs []ledger.Transaction) (bool, error) {
	for _, tx := range txs {
		_, err := m.ledger.Get(ctx, tx.ID)
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
