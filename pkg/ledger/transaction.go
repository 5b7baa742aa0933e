// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
)

var (
	ErrPersistence           = errors.New("ledger persistence failure")
	ErrNotFound              = errors.New("transaction not found")
	ErrClosed                = errors.New("ledger closed")
	ErrInvalidTransaction    = errors.New("invalid transaction")
	ErrAlreadyRedeemed       = errors.New("transaction already redeemed")
	ErrRedeemedBeforeCreated = errors.New("redeemed_at precedes created_at")
	ErrDuplicateID           = errors.New("duplicate transaction id")
)

// Transaction is one value-bearing ledger event. Only RedeemedAt may change
// after creation, from unset to set, exactly once.
type Transaction struct {
	ID               ids.ID                `json:"id"`
	CreatedAt        time.Time             `json:"created_at"`
	Value            decimal.Decimal       `json:"value"`
	ConfirmationType core.ConfirmationType `json:"confirmation_type"`
	RedeemedAt       *time.Time            `json:"redeemed_at,omitempty"`
}

// IsRedeemed reports whether the transaction has been redeemed
func (t Transaction) IsRedeemed() bool {
	return t.RedeemedAt != nil
}

// Validate checks the ledger invariants for t
func (t Transaction) Validate() error {
	switch {
	case t.ID.IsEmpty():
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	case t.CreatedAt.IsZero():
		return fmt.Errorf("%w: %s: missing created_at", ErrInvalidTransaction, t.ID)
	case t.Value.IsNegative():
		return fmt.Errorf("%w: %s: negative value %s", ErrInvalidTransaction, t.ID, t.Value)
	case !t.ConfirmationType.IsValid():
		return fmt.Errorf("%w: %s: %w", ErrInvalidTransaction, t.ID, core.ErrUnknownConfirmationType)
	case t.RedeemedAt != nil && t.RedeemedAt.Before(t.CreatedAt):
		return fmt.Errorf("%w: %s", ErrRedeemedBeforeCreated, t.ID)
	}
	return nil
}

// Sum adds up the values of txs
func Sum(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Value)
	}
	return total
}

// SortByCreatedAt orders txs by created_at, then id
func SortByCreatedAt(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}
