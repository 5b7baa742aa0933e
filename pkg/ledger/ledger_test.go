// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	storagetest "github.com/luxfi/adengine/internal/testing/storage"
	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/ledger/dbstore"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
	"github.com/luxfi/adengine/pkg/storage"
)

var now = time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)

var errDiskFull = errors.New("disk full")

func newLedger(t *testing.T) (*ledger.Ledger, *clock.FakeClock) {
	t.Helper()

	clk := clock.Fake(now)
	store := dbstore.New(storage.NewMemory())
	l := ledger.New(store, clk, nil, log.NoOp())
	t.Cleanup(func() {
		l.Close()
		_ = store.Close()
	})
	return l, clk
}

func TestAddThenGetForDateRange(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	tx, err := l.Add(ctx, decimal.RequireFromString("0.05"), core.ConfirmationTypeViewed)
	require.NoError(err)
	require.False(tx.ID.IsEmpty())
	require.Equal(now, tx.CreatedAt)
	require.Nil(tx.RedeemedAt)

	got, err := l.GetForDateRange(ctx, tx.CreatedAt, tx.CreatedAt)
	require.NoError(err)
	require.Equal([]ledger.Transaction{tx}, got)
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	seen := make(map[ids.ID]struct{})
	for i := 0; i < 20; i++ {
		tx, err := l.Add(ctx, decimal.RequireFromString("0.01"), core.ConfirmationTypeClicked)
		require.NoError(err)
		seen[tx.ID] = struct{}{}
	}
	require.Len(seen, 20)

	got, err := l.GetForDateRange(ctx, now, now)
	require.NoError(err)
	require.Len(got, 20)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	_, err := l.Add(ctx, decimal.RequireFromString("0.05"), core.ConfirmationTypeUndefined)
	require.ErrorIs(err, ledger.ErrInvalidTransaction)

	_, err = l.Add(ctx, decimal.RequireFromString("-1"), core.ConfirmationTypeViewed)
	require.ErrorIs(err, ledger.ErrInvalidTransaction)

	got, err := l.GetForDateRange(ctx, now, now)
	require.NoError(err)
	require.Empty(got)
}

func TestConcurrentAdds(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Add(ctx, decimal.RequireFromString("0.01"), core.ConfirmationTypeViewed)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(err)
	}

	got, err := l.GetForDateRange(ctx, now, now)
	require.NoError(err)
	require.Len(got, n)
}

func TestAddAsync(t *testing.T) {
	require := require.New(t)
	l, _ := newLedger(t)

	res := <-l.AddAsync(context.Background(), decimal.RequireFromString("0.05"), core.ConfirmationTypeLanded)
	require.NoError(res.Err)
	require.Equal(core.ConfirmationTypeLanded, res.Transaction.ConfirmationType)
}

func TestGetForDateRange(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, clk := newLedger(t)

	first, err := l.Add(ctx, decimal.RequireFromString("1"), core.ConfirmationTypeViewed)
	require.NoError(err)
	clk.Advance(time.Hour)
	second, err := l.Add(ctx, decimal.RequireFromString("2"), core.ConfirmationTypeViewed)
	require.NoError(err)

	got, err := l.GetForDateRange(ctx, now, now.Add(time.Hour))
	require.NoError(err)
	require.Equal([]ledger.Transaction{first, second}, got)

	got, err = l.GetForDateRange(ctx, now.Add(time.Minute), now.Add(59*time.Minute))
	require.NoError(err)
	require.NotNil(got)
	require.Empty(got)

	got, err = l.GetForDateRange(ctx, now.Add(time.Hour), now)
	require.NoError(err)
	require.Empty(got)
}

func TestRemoveAll(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	for i := 0; i < 3; i++ {
		_, err := l.Add(ctx, decimal.RequireFromString("1"), core.ConfirmationTypeViewed)
		require.NoError(err)
	}
	require.NoError(l.RemoveAll(ctx))

	got, err := l.GetForDateRange(ctx, time.Time{}, now.AddDate(100, 0, 0))
	require.NoError(err)
	require.Empty(got)
}

func TestMarkRedeemed(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	tx, err := l.Add(ctx, decimal.RequireFromString("0.05"), core.ConfirmationTypeViewed)
	require.NoError(err)

	_, err = l.MarkRedeemed(ctx, tx.ID, now.Add(-time.Second))
	require.ErrorIs(err, ledger.ErrRedeemedBeforeCreated)

	redeemed, err := l.MarkRedeemed(ctx, tx.ID, now.Add(time.Hour))
	require.NoError(err)
	require.NotNil(redeemed.RedeemedAt)
	require.Equal(now.Add(time.Hour), *redeemed.RedeemedAt)
	require.Equal(tx.Value, redeemed.Value)
	require.Equal(tx.CreatedAt, redeemed.CreatedAt)

	_, err = l.MarkRedeemed(ctx, tx.ID, now.Add(2*time.Hour))
	require.ErrorIs(err, ledger.ErrAlreadyRedeemed)

	got, err := l.Get(ctx, tx.ID)
	require.NoError(err)
	require.Equal(now.Add(time.Hour), *got.RedeemedAt)

	_, err = l.MarkRedeemed(ctx, ids.Generate(), now)
	require.ErrorIs(err, ledger.ErrNotFound)
}

func TestSave(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	redeemedAt := now
	txs := []ledger.Transaction{
		{ID: ids.Generate(), CreatedAt: now.AddDate(0, -2, 0), Value: decimal.RequireFromString("5"), ConfirmationType: core.ConfirmationTypeViewed},
		{ID: ids.Generate(), CreatedAt: now.AddDate(0, -1, 0), Value: decimal.RequireFromString("7"), ConfirmationType: core.ConfirmationTypeViewed, RedeemedAt: &redeemedAt},
	}
	require.NoError(l.Save(ctx, txs))

	got, err := l.GetForDateRange(ctx, now.AddDate(-1, 0, 0), now)
	require.NoError(err)
	require.Equal(txs, got)

	invalid := append(txs, ledger.Transaction{ID: ids.Generate(), CreatedAt: now})
	require.ErrorIs(l.Save(ctx, invalid), ledger.ErrInvalidTransaction)
}

func TestSaveNeverRewritesTransactions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	l, _ := newLedger(t)

	tx, err := l.Add(ctx, decimal.RequireFromString("1"), core.ConfirmationTypeViewed)
	require.NoError(err)
	redeemed, err := l.MarkRedeemed(ctx, tx.ID, now.Add(time.Hour))
	require.NoError(err)

	rewrite := ledger.Transaction{
		ID:               tx.ID,
		CreatedAt:        now.Add(-time.Hour),
		Value:            decimal.RequireFromString("999"),
		ConfirmationType: core.ConfirmationTypeClicked,
	}
	require.ErrorIs(l.Save(ctx, []ledger.Transaction{rewrite}), ledger.ErrDuplicateID)

	got, err := l.Get(ctx, tx.ID)
	require.NoError(err)
	require.Equal(redeemed, got)

	txs, err := l.GetForDateRange(ctx, time.Time{}, now.Add(24*time.Hour))
	require.NoError(err)
	require.Equal([]ledger.Transaction{redeemed}, txs)
}

func TestBadgerLedgerEmptyRanges(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	db, err := storage.NewStorage(storage.TypeBadger, t.TempDir())
	require.NoError(err)
	store := dbstore.New(db)
	l := ledger.New(store, clock.Fake(now), nil, log.NoOp())
	t.Cleanup(func() {
		l.Close()
		_ = store.Close()
	})

	got, err := l.GetForDateRange(ctx, time.Time{}, now.Add(time.Hour))
	require.NoError(err)
	require.Empty(got)

	require.NoError(l.RemoveAll(ctx))

	_, err = l.Add(ctx, decimal.RequireFromString("1"), core.ConfirmationTypeViewed)
	require.NoError(err)
	require.NoError(l.RemoveAll(ctx))

	got, err = l.GetForDateRange(ctx, time.Time{}, now.Add(time.Hour))
	require.NoError(err)
	require.NotNil(got)
	require.Empty(got)
}

func TestPersistenceFailureIsReported(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	metrics, err := metric.NewMetrics()
	require.NoError(err)

	store := &storagetest.MockStore{}
	store.On("Insert", mock.Anything, mock.Anything).Return(errDiskFull)
	store.On("MarkRedeemed", mock.Anything, mock.Anything, mock.Anything).Return(nil, errDiskFull)
	store.On("Range", mock.Anything, mock.Anything, mock.Anything).Return(nil, errDiskFull)
	store.On("DeleteAll", mock.Anything).Return(errDiskFull)

	l := ledger.New(store, clock.Fake(now), metrics, log.NoOp())
	defer l.Close()

	tx, err := l.Add(ctx, decimal.RequireFromString("0.05"), core.ConfirmationTypeViewed)
	require.ErrorIs(err, ledger.ErrPersistence)
	require.ErrorIs(err, errDiskFull)
	require.Equal(ledger.Transaction{}, tx)

	res := <-l.AddAsync(ctx, decimal.RequireFromString("0.05"), core.ConfirmationTypeViewed)
	require.ErrorIs(res.Err, ledger.ErrPersistence)

	_, err = l.GetForDateRange(ctx, now, now)
	require.ErrorIs(err, ledger.ErrPersistence)

	require.ErrorIs(l.RemoveAll(ctx), ledger.ErrPersistence)

	_, err = l.MarkRedeemed(ctx, ids.Generate(), now)
	require.ErrorIs(err, ledger.ErrPersistence)

	require.Equal(2.0, metrics.Value("ledger_errors_total", metric.Labels{"op": "add"}))
	require.Zero(metrics.Value("ledger_transactions_added_total", metric.Labels{"confirmation_type": "view"}))
	store.AssertExpectations(t)
}

func TestClosedLedgerRejectsWrites(t *testing.T) {
	require := require.New(t)

	store := &storagetest.MockStore{}
	l := ledger.New(store, clock.Fake(now), nil, log.NoOp())
	l.Close()
	l.Close()

	_, err := l.Add(context.Background(), decimal.RequireFromString("1"), core.ConfirmationTypeViewed)
	require.ErrorIs(err, ledger.ErrClosed)
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCanceledContextSkipsWrite(t *testing.T) {
	require := require.New(t)

	store := &storagetest.MockStore{}
	l := ledger.New(store, clock.Fake(now), nil, log.NoOp())
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Add(ctx, decimal.RequireFromString("1"), core.ConfirmationTypeViewed)
	require.ErrorIs(err, context.Canceled)
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
