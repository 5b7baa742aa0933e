// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sqlstore persists ledger transactions in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                TEXT    PRIMARY KEY,
	created_at        INTEGER NOT NULL,
	value             TEXT    NOT NULL,
	confirmation_type TEXT    NOT NULL,
	redeemed_at       INTEGER
);
CREATE INDEX IF NOT EXISTS transactions_created_at ON transactions (created_at, id);
`

const selectByID = `SELECT id, created_at, value, confirmation_type, redeemed_at
FROM transactions WHERE id = ?`

var _ ledger.Store = (*Store)(nil)

// Store is a ledger.Store over database/sql
type Store struct {
	db *sql.DB
}

// OpenSQLite opens dsn with the pure-Go SQLite driver and applies the schema
func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := New(db)
	if err := s.ApplySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ApplySchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Insert(ctx context.Context, txs []ledger.Transaction) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (id, created_at, value, confirmation_type, redeemed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range txs {
			var redeemedAt sql.NullInt64
			if t.RedeemedAt != nil {
				redeemedAt = sql.NullInt64{Int64: t.RedeemedAt.UnixNano(), Valid: true}
			}
			res, err := stmt.ExecContext(ctx,
				t.ID.String(),
				t.CreatedAt.UnixNano(),
				t.Value.String(),
				t.ConfirmationType.String(),
				redeemedAt,
			)
			if err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ledger.ErrDuplicateID, t.ID)
			}
		}
		return nil
	})
}

func (s *Store) MarkRedeemed(ctx context.Context, id ids.ID, at time.Time) (ledger.Transaction, error) {
	var redeemed ledger.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := scan(tx.QueryRowContext(ctx, selectByID, id.String()))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if t.IsRedeemed() {
			return fmt.Errorf("%w: %s", ledger.ErrAlreadyRedeemed, id)
		}
		if at.Before(t.CreatedAt) {
			return fmt.Errorf("%w: %s", ledger.ErrRedeemedBeforeCreated, id)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET redeemed_at = ?
WHERE id = ? AND redeemed_at IS NULL`, at.UnixNano(), id.String()); err != nil {
			return err
		}

		at = at.UTC()
		t.RedeemedAt = &at
		redeemed = t
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return redeemed, nil
}

func (s *Store) Range(ctx context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, value, confirmation_type, redeemed_at
FROM transactions
WHERE created_at >= ? AND created_at <= ?
ORDER BY created_at ASC, id ASC`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.Transaction{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id ids.ID) (ledger.Transaction, error) {
	row := s.db.QueryRowContext(ctx, selectByID, id.String())

	t, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	return t, err
}

func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (ledger.Transaction, error) {
	var (
		id               string
		createdAt        int64
		value            string
		confirmationType string
		redeemedAt       sql.NullInt64
	)
	if err := row.Scan(&id, &createdAt, &value, &confirmationType, &redeemedAt); err != nil {
		return ledger.Transaction{}, err
	}

	v, err := decimal.NewFromString(value)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %s value: %w", id, err)
	}

	t := ledger.Transaction{
		ID:               ids.ID(id),
		CreatedAt:        time.Unix(0, createdAt).UTC(),
		Value:            v,
		ConfirmationType: core.ConfirmationType(confirmationType),
	}
	if redeemedAt.Valid {
		at := time.Unix(0, redeemedAt.Int64).UTC()
		t.RedeemedAt = &at
	}
	return t, nil
}
