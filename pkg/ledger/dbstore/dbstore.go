// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dbstore persists ledger transactions in a luxfi key/value database.
//
// Layout:
//
//	tx/<created_at nanos, 8 bytes big-endian, sign-flipped><id> -> CBOR record
//	id/<id>                                                     -> tx/ key
package dbstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luxfi/adengine/pkg/codec"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/storage"
)

var (
	txPrefix = []byte("tx/")
	idPrefix = []byte("id/")
)

var _ ledger.Store = (*Store)(nil)

type record struct {
	ID               string `cbor:"1,keyasint"`
	CreatedAt        int64  `cbor:"2,keyasint"`
	Value            string `cbor:"3,keyasint"`
	ConfirmationType string `cbor:"4,keyasint"`
	RedeemedAt       *int64 `cbor:"5,keyasint,omitempty"`
}

// Store is a ledger.Store over pkg/storage
type Store struct {
	// mu serializes the read-check-write sequences of Insert and MarkRedeemed
	mu sync.Mutex
	db *storage.Storage
}

// New wraps db. The Store takes ownership and closes db on Close.
func New(db *storage.Storage) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, txs []ledger.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[ids.ID]struct{}, len(txs))
	batch := s.db.NewBatch()
	for _, tx := range txs {
		if _, ok := seen[tx.ID]; ok {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateID, tx.ID)
		}
		seen[tx.ID] = struct{}{}

		exists, err := s.db.Has(idKey(tx.ID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateID, tx.ID)
		}

		key := txKey(tx.CreatedAt, tx.ID)
		value, err := codec.Marshal(toRecord(tx))
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", tx.ID, err)
		}
		if err := batch.Put(key, value); err != nil {
			return err
		}
		if err := batch.Put(idKey(tx.ID), key); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (s *Store) MarkRedeemed(ctx context.Context, id ids.ID, at time.Time) (ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, tx, err := s.lookup(id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.IsRedeemed() {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrAlreadyRedeemed, id)
	}
	if at.Before(tx.CreatedAt) {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrRedeemedBeforeCreated, id)
	}

	at = at.UTC()
	tx.RedeemedAt = &at
	value, err := codec.Marshal(toRecord(tx))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("encode transaction %s: %w", id, err)
	}
	if err := s.db.Put(key, value); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) Range(ctx context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := timePrefix(from)
	upper := timePrefix(to)

	it := s.db.NewIteratorWithPrefix(txPrefix)
	defer it.Release()

	out := []ledger.Transaction{}
	for it.Next() {
		key := it.Key()
		ts := key[len(txPrefix) : len(txPrefix)+8]
		if bytes.Compare(ts, lower) < 0 {
			continue
		}
		if bytes.Compare(ts, upper) > 0 {
			break
		}

		tx, err := decode(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id ids.ID) (ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Transaction{}, err
	}

	_, tx, err := s.lookup(id)
	return tx, err
}

// lookup resolves id through the index to its record key and transaction
func (s *Store) lookup(id ids.ID) ([]byte, ledger.Transaction, error) {
	key, err := s.db.Get(idKey(id))
	if storage.IsNotFound(err) {
		return nil, ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return nil, ledger.Transaction{}, err
	}

	value, err := s.db.Get(key)
	if err != nil {
		return nil, ledger.Transaction{}, fmt.Errorf("dangling index for %s: %w", id, err)
	}
	tx, err := decode(value)
	return key, tx, err
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.DeletePrefix(txPrefix); err != nil {
		return err
	}
	_, err := s.db.DeletePrefix(idPrefix)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func timePrefix(t time.Time) []byte {
	b := make([]byte, 8)
	// Flip the sign bit so pre-1970 times sort first.
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano())^(1<<63))
	return b
}

func txKey(createdAt time.Time, id ids.ID) []byte {
	key := make([]byte, 0, len(txPrefix)+8+len(id))
	key = append(key, txPrefix...)
	key = append(key, timePrefix(createdAt)...)
	return append(key, id...)
}

func idKey(id ids.ID) []byte {
	return append(append([]byte(nil), idPrefix...), id...)
}

func toRecord(tx ledger.Transaction) record {
	rec := record{
		ID:               tx.ID.String(),
		CreatedAt:        tx.CreatedAt.UnixNano(),
		Value:            tx.Value.String(),
		ConfirmationType: tx.ConfirmationType.String(),
	}
	if tx.RedeemedAt != nil {
		n := tx.RedeemedAt.UnixNano()
		rec.RedeemedAt = &n
	}
	return rec
}

func decode(b []byte) (ledger.Transaction, error) {
	var rec record
	if err := codec.Unmarshal(b, &rec); err != nil {
		return ledger.Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}

	value, err := decimal.NewFromString(rec.Value)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("decode transaction %s value: %w", rec.ID, err)
	}

	tx := ledger.Transaction{
		ID:               ids.ID(rec.ID),
		CreatedAt:        time.Unix(0, rec.CreatedAt).UTC(),
		Value:            value,
		ConfirmationType: core.ConfirmationType(rec.ConfirmationType),
	}
	if rec.RedeemedAt != nil {
		at := time.Unix(0, *rec.RedeemedAt).UTC()
		tx.RedeemedAt = &at
	}
	return tx, nil
}
