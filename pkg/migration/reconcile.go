// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package migration imports a legacy rewards state into the ledger,
// collapsing historical transactions into a few summary rows.
package migration

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
)

// Payment is an externally computed monthly settlement
type Payment struct {
	Balance          decimal.Decimal `json:"balance"`
	Month            string          `json:"month"` // "2006-01"
	TransactionCount int             `json:"transaction_count"`
}

// GetTransactionsForThisMonth returns the transactions created during now's
// calendar month
func GetTransactionsForThisMonth(txs []ledger.Transaction, now time.Time) []ledger.Transaction {
	from := clock.BeginningOfMonth(now)
	to := clock.EndOfMonth(now)

	out := []ledger.Transaction{}
	for _, tx := range txs {
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// GetTransactionsForPreviousMonths returns the unredeemed transactions created
// before the first instant of last month
func GetTransactionsForPreviousMonths(txs []ledger.Transaction, now time.Time) []ledger.Transaction {
	before := clock.BeginningOfPreviousMonth(now)

	out := []ledger.Transaction{}
	for _, tx := range txs {
		if tx.IsRedeemed() || !tx.CreatedAt.Before(before) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// BuildUnredeemedTransactionForPreviousMonths sums txs into one unredeemed
// transaction dated at the last instant before last month. Its id is derived
// from last month, so rebuilding it within the same month is idempotent.
func BuildUnredeemedTransactionForPreviousMonths(txs []ledger.Transaction, now time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:               ids.FromName("legacy-rewards/unredeemed/" + clock.MonthKey(clock.BeginningOfPreviousMonth(now))),
		CreatedAt:        clock.BeginningOfPreviousMonth(now).Add(-time.Nanosecond),
		Value:            ledger.Sum(txs),
		ConfirmationType: core.ConfirmationTypeViewed,
	}
}

// BuildRedeemedTransactionForLastMonth turns last month's payment into one
// transaction redeemed at now. A missing payment yields a zero value.
func BuildRedeemedTransactionForLastMonth(payments []Payment, now time.Time) ledger.Transaction {
	redeemedAt := now

	return ledger.Transaction{
		ID:               ids.FromName("legacy-rewards/redeemed/" + clock.MonthKey(clock.BeginningOfPreviousMonth(now))),
		CreatedAt:        clock.EndOfPreviousMonth(now),
		Value:            PaymentForMonth(payments, clock.MonthKey(clock.BeginningOfPreviousMonth(now))),
		ConfirmationType: core.ConfirmationTypeViewed,
		RedeemedAt:       &redeemedAt,
	}
}

// PaymentForMonth sums the balances recorded for month
func PaymentForMonth(payments []Payment, month string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.Month == month {
			total = total.Add(p.Balance)
		}
	}
	return total
}
