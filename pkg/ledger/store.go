// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"time"

	"github.com/luxfi/adengine/pkg/ids"
)

// Store is the durable backend of a Ledger. Records are append-only apart
// from redeemed_at, which a Store only ever moves from unset to set.
type Store interface {
	// Insert adds txs atomically: either every record is persisted or none
	// is. An id that is already stored, or repeated within txs, rejects the
	// whole batch with ErrDuplicateID.
	Insert(ctx context.Context, txs []Transaction) error

	// MarkRedeemed sets redeemed_at on the transaction with id and returns
	// the updated record. It fails with ErrNotFound, ErrAlreadyRedeemed or
	// ErrRedeemedBeforeCreated and never changes any other field.
	MarkRedeemed(ctx context.Context, id ids.ID, at time.Time) (Transaction, error)

	// Range returns the transactions with created_at in [from, to], ordered
	// by created_at then id.
	Range(ctx context.Context, from, to time.Time) ([]Transaction, error)

	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id ids.ID) (Transaction, error)

	DeleteAll(ctx context.Context) error

	Close() error
}
