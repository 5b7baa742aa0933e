// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
)

const (
	TypeMemory = "memory"
	TypeBadger = "badger"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = database.ErrNotFound

// endKey sorts after every key written through Storage. badgerdb's iterator
// dereferences a nil item when Next is called after a seek that found
// nothing, so the keyspace always holds a key past every prefix.
var endKey = []byte{0xff, 0xff, 0xff, 0xff}

// Storage wraps luxfi's database interface
type Storage struct {
	db database.Database
}

// NewStorage creates a new storage instance using luxfi/database
func NewStorage(dbType string, path string) (*Storage, error) {
	var db database.Database
	var err error

	switch dbType {
	case TypeMemory:
		db = memdb.New()
	case TypeBadger, "":
		if path == "" {
			return nil, errors.New("badger storage requires a path")
		}
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, fmt.Errorf("open badger at %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unknown storage type %q", dbType)
	}

	return wrap(db)
}

// NewMemory is shorthand for an in-memory store, used heavily in tests
func NewMemory() *Storage {
	s, err := wrap(memdb.New())
	if err != nil {
		// memdb writes only fail once closed
		panic(err)
	}
	return s
}

func wrap(db database.Database) (*Storage, error) {
	if err := db.Put(endKey, []byte{1}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("write end key: %w", err)
	}
	return &Storage{db: db}, nil
}

// Put stores a key-value pair
func (s *Storage) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

// Get retrieves a value by key
func (s *Storage) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}

// Has checks if a key exists
func (s *Storage) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

// Delete removes a key-value pair
func (s *Storage) Delete(key []byte) error {
	return s.db.Delete(key)
}

// NewBatch creates a new batch for atomic operations
func (s *Storage) NewBatch() database.Batch {
	return s.db.NewBatch()
}

// NewIteratorWithPrefix creates an iterator with a key prefix. prefix must
// be non-empty and sort before the end key.
func (s *Storage) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return s.db.NewIteratorWithPrefix(prefix)
}

// DeletePrefix removes every key under prefix in a single batch
func (s *Storage) DeletePrefix(prefix []byte) (int, error) {
	it := s.NewIteratorWithPrefix(prefix)
	defer it.Release()

	batch := s.db.NewBatch()
	n := 0
	for it.Next() {
		// Iterator keys are only valid until the next call.
		key := append([]byte(nil), it.Key()...)
		if err := batch.Delete(key); err != nil {
			return 0, err
		}
		n++
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// GetDatabase returns the underlying database
func (s *Storage) GetDatabase() database.Database {
	return s.db
}

// IsNotFound reports whether err means the key is absent
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
