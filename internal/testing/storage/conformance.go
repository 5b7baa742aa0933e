// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
)

var base = time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)

func buildTransaction(createdAt time.Time, value string) ledger.Transaction {
	return ledger.Transaction{
		ID:               ids.Generate(),
		CreatedAt:        createdAt,
		Value:            decimal.RequireFromString(value),
		ConfirmationType: core.ConfirmationTypeViewed,
	}
}

// RunStoreTests exercises a ledger.Store implementation. newStore must return
// an empty store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	tests := map[string]func(t *testing.T, s ledger.Store){
		"InsertGet":               testInsertGet,
		"InsertRejectsExistingID": testInsertRejectsExistingID,
		"InsertRejectsRepeatedID": testInsertRejectsRepeatedID,
		"MarkRedeemed":            testMarkRedeemed,
		"MarkRedeemedErrors":      testMarkRedeemedErrors,
		"RangeInclusive":          testRangeInclusive,
		"RangeOrder":              testRangeOrder,
		"RangeEmpty":              testRangeEmpty,
		"GetMissing":              testGetMissing,
		"DeleteAll":               testDeleteAll,
		"DeleteAllEmpty":          testDeleteAllEmpty,
		"PreEpochTimestamps":      testPreEpochTimestamps,
		"CanceledContextInsert":   testCanceledContextInsert,
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			test(t, s)
		})
	}
}

func testInsertGet(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	tx := buildTransaction(base, "0.05")
	require.NoError(s.Insert(ctx, []ledger.Transaction{tx}))

	got, err := s.Get(ctx, tx.ID)
	require.NoError(err)
	require.Equal(tx, got)
}

func testRangeInclusive(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	before := buildTransaction(base.Add(-time.Nanosecond), "1")
	first := buildTransaction(base, "2")
	last := buildTransaction(base.Add(time.Hour), "3")
	after := buildTransaction(base.Add(time.Hour+time.Nanosecond), "4")
	require.NoError(s.Insert(ctx, []ledger.Transaction{before, first, last, after}))

	got, err := s.Range(ctx, base, base.Add(time.Hour))
	require.NoError(err)
	require.Equal([]ledger.Transaction{first, last}, got)

	got, err = s.Range(ctx, base, base)
	require.NoError(err)
	require.Equal([]ledger.Transaction{first}, got)
}

func testRangeOrder(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	txs := []ledger.Transaction{
		buildTransaction(base.Add(3*time.Minute), "1"),
		buildTransaction(base.Add(time.Minute), "2"),
		buildTransaction(base.Add(2*time.Minute), "3"),
	}
	require.NoError(s.Insert(ctx, txs))

	got, err := s.Range(ctx, base, base.Add(time.Hour))
	require.NoError(err)
	require.Len(got, 3)

	want := append([]ledger.Transaction(nil), txs...)
	ledger.SortByCreatedAt(want)
	require.Equal(want, got)
}

func testRangeEmpty(t *testing.T, s ledger.Store) {
	require := require.New(t)

	got, err := s.Range(context.Background(), base, base.Add(time.Hour))
	require.NoError(err)
	require.Empty(got)
}

func testInsertRejectsExistingID(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	tx := buildTransaction(base, "1")
	require.NoError(s.Insert(ctx, []ledger.Transaction{tx}))

	rewritten := tx
	rewritten.Value = decimal.RequireFromString("999")
	rewritten.ConfirmationType = core.ConfirmationTypeClicked
	fresh := buildTransaction(base.Add(time.Minute), "2")
	err := s.Insert(ctx, []ledger.Transaction{fresh, rewritten})
	require.ErrorIs(err, ledger.ErrDuplicateID)

	got, err := s.Get(ctx, tx.ID)
	require.NoError(err)
	require.Equal(tx, got)

	_, err = s.Get(ctx, fresh.ID)
	require.ErrorIs(err, ledger.ErrNotFound, "a rejected batch must write nothing")
}

func testInsertRejectsRepeatedID(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	tx := buildTransaction(base, "1")
	again := tx
	again.Value = decimal.RequireFromString("2")
	require.ErrorIs(s.Insert(ctx, []ledger.Transaction{tx, again}), ledger.ErrDuplicateID)

	got, err := s.Range(ctx, base, base)
	require.NoError(err)
	require.Empty(got)
}

func testMarkRedeemed(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	tx := buildTransaction(base, "0.05")
	require.NoError(s.Insert(ctx, []ledger.Transaction{tx}))

	at := base.Add(time.Hour)
	redeemed, err := s.MarkRedeemed(ctx, tx.ID, at)
	require.NoError(err)

	want := tx
	want.RedeemedAt = &at
	require.Equal(want, redeemed)

	got, err := s.Range(ctx, base, base)
	require.NoError(err)
	require.Equal([]ledger.Transaction{want}, got)
}

func testMarkRedeemedErrors(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	tx := buildTransaction(base, "0.05")
	require.NoError(s.Insert(ctx, []ledger.Transaction{tx}))

	_, err := s.MarkRedeemed(ctx, ids.Generate(), base)
	require.ErrorIs(err, ledger.ErrNotFound)

	_, err = s.MarkRedeemed(ctx, tx.ID, base.Add(-time.Nanosecond))
	require.ErrorIs(err, ledger.ErrRedeemedBeforeCreated)

	first := base.Add(time.Hour)
	_, err = s.MarkRedeemed(ctx, tx.ID, first)
	require.NoError(err)

	_, err = s.MarkRedeemed(ctx, tx.ID, base.Add(2*time.Hour))
	require.ErrorIs(err, ledger.ErrAlreadyRedeemed)

	got, err := s.Get(ctx, tx.ID)
	require.NoError(err)
	require.Equal(first, *got.RedeemedAt)
}

func testGetMissing(t *testing.T, s ledger.Store) {
	_, err := s.Get(context.Background(), ids.Generate())
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func testDeleteAll(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	tx := buildTransaction(base, "1")
	require.NoError(s.Insert(ctx, []ledger.Transaction{tx, buildTransaction(base.Add(time.Minute), "2")}))
	require.NoError(s.DeleteAll(ctx))

	got, err := s.Range(ctx, time.Unix(0, 0), base.AddDate(10, 0, 0))
	require.NoError(err)
	require.Empty(got)

	_, err = s.Get(ctx, tx.ID)
	require.ErrorIs(err, ledger.ErrNotFound)
}

func testDeleteAllEmpty(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	require.NoError(s.DeleteAll(ctx))

	got, err := s.Range(ctx, time.Unix(0, 0), base.AddDate(10, 0, 0))
	require.NoError(err)
	require.Empty(got)

	_, err = s.Get(ctx, ids.Generate())
	require.ErrorIs(err, ledger.ErrNotFound)
}

func testPreEpochTimestamps(t *testing.T, s ledger.Store) {
	require := require.New(t)
	ctx := context.Background()

	old := buildTransaction(time.Date(1969, time.December, 31, 0, 0, 0, 0, time.UTC), "1")
	recent := buildTransaction(base, "2")
	require.NoError(s.Insert(ctx, []ledger.Transaction{recent, old}))

	got, err := s.Range(ctx, old.CreatedAt, base)
	require.NoError(err)
	require.Equal([]ledger.Transaction{old, recent}, got)
}

func testCanceledContextInsert(t *testing.T, s ledger.Store) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := buildTransaction(base, "1")
	require.Error(s.Insert(ctx, []ledger.Transaction{tx}))

	_, err := s.Get(context.Background(), tx.ID)
	require.ErrorIs(err, ledger.ErrNotFound)
}
