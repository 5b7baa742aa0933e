// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package migration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/ledger/dbstore"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/storage"
)

var now = time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)

func buildTransaction(createdAt time.Time, value string) ledger.Transaction {
	return ledger.Transaction{
		ID:               ids.Generate(),
		CreatedAt:        createdAt,
		Value:            decimal.RequireFromString(value),
		ConfirmationType: core.ConfirmationTypeViewed,
	}
}

// Transactions worth 5 in January, 3 in February and 2 in March.
func buildHistory() []ledger.Transaction {
	return []ledger.Transaction{
		buildTransaction(time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC), "2"),
		buildTransaction(time.Date(2021, time.January, 31, 23, 59, 59, 0, time.UTC), "3"),
		buildTransaction(time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC), "1"),
		buildTransaction(time.Date(2021, time.February, 28, 23, 59, 59, 0, time.UTC), "2"),
		buildTransaction(time.Date(2021, time.March, 1, 0, 0, 0, 0, time.UTC), "0.5"),
		buildTransaction(time.Date(2021, time.March, 15, 11, 0, 0, 0, time.UTC), "1.5"),
	}
}

func TestGetTransactionsForThisMonth(t *testing.T) {
	require := require.New(t)

	got := GetTransactionsForThisMonth(buildHistory(), now)
	require.Len(got, 2)
	require.True(ledger.Sum(got).Equal(decimal.NewFromInt(2)))

	require.Empty(GetTransactionsForThisMonth(nil, now))
}

func TestGetTransactionsForPreviousMonths(t *testing.T) {
	require := require.New(t)

	txs := buildHistory()
	redeemedAt := now
	redeemed := buildTransaction(time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC), "100")
	redeemed.RedeemedAt = &redeemedAt
	txs = append(txs, redeemed)

	got := GetTransactionsForPreviousMonths(txs, now)
	require.Len(got, 2)
	require.True(ledger.Sum(got).Equal(decimal.NewFromInt(5)))
}

func TestReconcileSummaries(t *testing.T) {
	require := require.New(t)

	payments := []Payment{
		{Balance: decimal.NewFromInt(7), Month: "2021-02", TransactionCount: 3},
		{Balance: decimal.NewFromInt(11), Month: "2021-01", TransactionCount: 2},
	}

	unredeemed := BuildUnredeemedTransactionForPreviousMonths(GetTransactionsForPreviousMonths(buildHistory(), now), now)
	require.True(unredeemed.Value.Equal(decimal.NewFromInt(5)), unredeemed.Value.String())
	require.Nil(unredeemed.RedeemedAt)
	require.True(unredeemed.CreatedAt.Before(clock.BeginningOfPreviousMonth(now)))
	require.NoError(unredeemed.Validate())

	redeemed := BuildRedeemedTransactionForLastMonth(payments, now)
	require.True(redeemed.Value.Equal(decimal.NewFromInt(7)), redeemed.Value.String())
	require.NotNil(redeemed.RedeemedAt)
	require.Equal(now, *redeemed.RedeemedAt)
	require.NoError(redeemed.Validate())
}

func TestBuildRedeemedTransactionForLastMonthWithoutPayment(t *testing.T) {
	require := require.New(t)

	redeemed := BuildRedeemedTransactionForLastMonth([]Payment{{Balance: decimal.NewFromInt(7), Month: "2020-12"}}, now)
	require.True(redeemed.Value.IsZero())
	require.Equal(now, *redeemed.RedeemedAt)
}

func TestMonthBoundariesAcrossYear(t *testing.T) {
	require := require.New(t)

	january := time.Date(2021, time.January, 10, 0, 0, 0, 0, time.UTC)
	payments := []Payment{{Balance: decimal.NewFromInt(4), Month: "2020-12"}}

	redeemed := BuildRedeemedTransactionForLastMonth(payments, january)
	require.True(redeemed.Value.Equal(decimal.NewFromInt(4)))

	txs := []ledger.Transaction{
		buildTransaction(time.Date(2020, time.November, 30, 0, 0, 0, 0, time.UTC), "1"),
		buildTransaction(time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC), "1"),
	}
	require.Len(GetTransactionsForPreviousMonths(txs, january), 1)
}

const legacyJSON = `{
  "transaction_history": {
    "transactions": [
      {
        "timestamp_in_seconds": "1609632000",
        "estimated_redemption_value": 2,
        "confirmation_type": "view"
      },
      {
        "id": "0b1b2a40-4bc4-4a3a-9a2e-f8d1e3c3fa91",
        "timestamp_in_seconds": "1612137599.5",
        "estimated_redemption_value": 3,
        "confirmation_type": "click",
        "redeemed_at": "0"
      },
      {
        "timestamp_in_seconds": "1615806000",
        "estimated_redemption_value": 1.5,
        "confirmation_type": "view"
      },
      {
        "timestamp_in_seconds": "not a time",
        "estimated_redemption_value": 1,
        "confirmation_type": "view"
      },
      {
        "timestamp_in_seconds": "1615806000",
        "estimated_redemption_value": 1,
        "confirmation_type": "bogus"
      }
    ]
  },
  "ads_rewards": {
    "payments": [
      { "balance": "7", "month": "2021-02", "transaction_count": "3" },
      { "balance": 1, "month": "February", "transaction_count": "1" }
    ]
  }
}`

func TestParseLegacyState(t *testing.T) {
	require := require.New(t)

	state, err := ParseLegacyState(strings.NewReader(legacyJSON), log.NoOp())
	require.NoError(err)
	require.Len(state.Transactions, 3)
	require.Len(state.Payments, 1)

	first := state.Transactions[0]
	require.Equal(time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC), first.CreatedAt)
	require.True(first.Value.Equal(decimal.NewFromInt(2)))
	require.False(first.ID.IsEmpty())

	second := state.Transactions[1]
	require.Equal(ids.ID("0b1b2a40-4bc4-4a3a-9a2e-f8d1e3c3fa91"), second.ID)
	require.Equal(core.ConfirmationTypeClicked, second.ConfirmationType)
	require.Equal(500*time.Millisecond, time.Duration(second.CreatedAt.Nanosecond()))
	require.Nil(second.RedeemedAt)

	require.Equal("2021-02", state.Payments[0].Month)
	require.Equal(3, state.Payments[0].TransactionCount)
	require.True(state.Payments[0].Balance.Equal(decimal.NewFromInt(7)))

	_, err = ParseLegacyState(strings.NewReader("{"), log.NoOp())
	require.Error(err)
}

func newMigrator(t *testing.T) (*Migrator, *ledger.Ledger, *storage.Storage) {
	t.Helper()

	db := storage.NewMemory()
	l := ledger.New(dbstore.New(storage.NewMemory()), clock.Fake(now), nil, log.NoOp())
	t.Cleanup(func() {
		l.Close()
		_ = db.Close()
	})
	return NewMigrator(l, db, clock.Fake(now), log.NoOp()), l, db
}

func TestMigrate(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	m, l, _ := newMigrator(t)

	state := State{
		Transactions: buildHistory(),
		Payments:     []Payment{{Balance: decimal.NewFromInt(7), Month: "2021-02"}},
	}

	result, err := m.Migrate(ctx, state)
	require.NoError(err)
	require.Equal(2, result.ThisMonth)
	require.NotNil(result.UnredeemedPrevious)
	require.True(result.UnredeemedPrevious.Value.Equal(decimal.NewFromInt(5)))
	require.NotNil(result.RedeemedLastMonth)
	require.True(result.RedeemedLastMonth.Value.Equal(decimal.NewFromInt(7)))

	all, err := l.GetForDateRange(ctx, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(err)
	require.Len(all, 4)
	require.True(ledger.Sum(all).Equal(decimal.NewFromInt(14)))

	migrated, err := m.IsMigrated()
	require.NoError(err)
	require.True(migrated)

	_, err = m.Migrate(ctx, state)
	require.ErrorIs(err, ErrAlreadyMigrated)

	all, err = l.GetForDateRange(ctx, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(err)
	require.Len(all, 4)
}

func TestMigrateSkipsZeroSummaries(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	m, l, _ := newMigrator(t)

	result, err := m.Migrate(ctx, State{Transactions: []ledger.Transaction{
		buildTransaction(time.Date(2021, time.March, 2, 0, 0, 0, 0, time.UTC), "1"),
	}})
	require.NoError(err)
	require.Nil(result.UnredeemedPrevious)
	require.Nil(result.RedeemedLastMonth)

	all, err := l.GetForDateRange(ctx, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(err)
	require.Len(all, 1)
}

func TestSummaryIDsAreStablePerMonth(t *testing.T) {
	require := require.New(t)

	payments := []Payment{{Balance: decimal.NewFromInt(7), Month: "2021-02"}}
	later := now.Add(48 * time.Hour)

	require.Equal(
		BuildUnredeemedTransactionForPreviousMonths(nil, now).ID,
		BuildUnredeemedTransactionForPreviousMonths(nil, later).ID)
	require.Equal(
		BuildRedeemedTransactionForLastMonth(payments, now).ID,
		BuildRedeemedTransactionForLastMonth(payments, later).ID)
	require.NotEqual(
		BuildRedeemedTransactionForLastMonth(payments, now).ID,
		BuildUnredeemedTransactionForPreviousMonths(nil, now).ID)
	require.NotEqual(
		BuildRedeemedTransactionForLastMonth(payments, now).ID,
		BuildRedeemedTransactionForLastMonth(payments, now.AddDate(0, 1, 0)).ID)
}

func TestParseLegacyStateIDsAreStable(t *testing.T) {
	require := require.New(t)

	first, err := ParseLegacyState(strings.NewReader(legacyJSON), log.NoOp())
	require.NoError(err)
	second, err := ParseLegacyState(strings.NewReader(legacyJSON), log.NoOp())
	require.NoError(err)
	require.Equal(first.Transactions, second.Transactions)
}

func TestParseLegacyStateSkipsRepeatedIDs(t *testing.T) {
	require := require.New(t)

	state, err := ParseLegacyState(strings.NewReader(`{
  "transaction_history": {
    "transactions": [
      {"id": "0b1b2a40-4bc4-4a3a-9a2e-f8d1e3c3fa91", "timestamp_in_seconds": "1615806000", "estimated_redemption_value": 1, "confirmation_type": "view"},
      {"id": "0b1b2a40-4bc4-4a3a-9a2e-f8d1e3c3fa91", "timestamp_in_seconds": "1615806001", "estimated_redemption_value": 9, "confirmation_type": "view"}
    ]
  }
}`), log.NoOp())
	require.NoError(err)
	require.Len(state.Transactions, 1)
	require.True(state.Transactions[0].Value.Equal(decimal.NewFromInt(1)))
}

var errMarkerWrite = errors.New("marker write failed")

type flakyMarkers struct {
	*storage.Storage
	failPut bool
}

func (f *flakyMarkers) Put(key, value []byte) error {
	if f.failPut {
		return errMarkerWrite
	}
	return f.Storage.Put(key, value)
}

func TestMigrateRetryAfterMarkerFailure(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	markers := &flakyMarkers{Storage: storage.NewMemory(), failPut: true}
	l := ledger.New(dbstore.New(storage.NewMemory()), clock.Fake(now), nil, log.NoOp())
	t.Cleanup(func() {
		l.Close()
		_ = markers.Close()
	})
	m := NewMigrator(l, markers, clock.Fake(now), log.NoOp())

	state := State{
		Transactions: buildHistory(),
		Payments:     []Payment{{Balance: decimal.NewFromInt(7), Month: "2021-02"}},
	}

	_, err := m.Migrate(ctx, state)
	require.ErrorIs(err, errMarkerWrite)

	migrated, err := m.IsMigrated()
	require.NoError(err)
	require.False(migrated)

	markers.failPut = false
	_, err = m.Migrate(ctx, state)
	require.ErrorIs(err, ErrAlreadyMigrated)

	migrated, err = m.IsMigrated()
	require.NoError(err)
	require.True(migrated)

	all, err := l.GetForDateRange(ctx, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(err)
	require.Len(all, 4)
	require.True(ledger.Sum(all).Equal(decimal.NewFromInt(14)))
}

func TestMigratePartialCollisionIsNotMarked(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	m, l, _ := newMigrator(t)

	history := buildHistory()
	require.NoError(l.Save(ctx, history[len(history)-1:]))

	_, err := m.Migrate(ctx, State{Transactions: history})
	require.ErrorIs(err, ledger.ErrDuplicateID)

	migrated, err := m.IsMigrated()
	require.NoError(err)
	require.False(migrated)

	all, err := l.GetForDateRange(ctx, time.Time{}, now.AddDate(1, 0, 0))
	require.NoError(err)
	require.Len(all, 1)
}
