// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stores opens the ledger backend and the key-value state database
// the daemons share, as selected by config.
package stores

import (
	"errors"
	"fmt"

	"github.com/luxfi/adengine/pkg/config"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/ledger/dbstore"
	"github.com/luxfi/adengine/pkg/ledger/sqlstore"
	"github.com/luxfi/adengine/pkg/storage"
)

// Stores holds the opened backends
type Stores struct {
	// Ledger backs the transaction ledger
	Ledger ledger.Store
	// State holds the issuer snapshot and the migration marker
	State *storage.Storage

	// set when State is separate from the ledger's database
	ownsState bool
}

// Open opens the backends described by cfg. Memory and badger ledgers keep
// state in the same database; a sqlite ledger keeps state in badger at
// StatePath, or in memory when StatePath is empty.
func Open(cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Type {
	case storage.TypeMemory, storage.TypeBadger:
		db, err := storage.NewStorage(cfg.Type, cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Stores{Ledger: dbstore.New(db), State: db}, nil

	case config.StorageSQLite:
		sqlStore, err := sqlstore.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger at %s: %w", cfg.Path, err)
		}

		state := storage.NewMemory()
		if cfg.StatePath != "" {
			state, err = storage.NewStorage(storage.TypeBadger, cfg.StatePath)
			if err != nil {
				_ = sqlStore.Close()
				return nil, err
			}
		}
		return &Stores{Ledger: sqlStore, State: state, ownsState: true}, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// Close closes every backend
func (s *Stores) Close() error {
	err := s.Ledger.Close()
	if s.ownsState {
		err = errors.Join(err, s.State.Close())
	}
	return err
}
