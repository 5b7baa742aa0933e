// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageCRUD(t *testing.T) {
	require := require.New(t)

	s := NewMemory()
	defer s.Close()

	require.NoError(s.Put([]byte("k"), []byte("v")))

	has, err := s.Has([]byte("k"))
	require.NoError(err)
	require.True(has)

	v, err := s.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), v)

	require.NoError(s.Delete([]byte("k")))
	_, err = s.Get([]byte("k"))
	require.True(IsNotFound(err))
}

func TestStorageDeletePrefix(t *testing.T) {
	require := require.New(t)

	s := NewMemory()
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.NoError(s.Put([]byte(fmt.Sprintf("tx/%d", i)), []byte{byte(i)}))
	}
	require.NoError(s.Put([]byte("issuers/current"), []byte("x")))

	n, err := s.DeletePrefix([]byte("tx/"))
	require.NoError(err)
	require.Equal(5, n)

	it := s.NewIteratorWithPrefix([]byte("tx/"))
	require.False(it.Next())
	it.Release()

	has, err := s.Has([]byte("issuers/current"))
	require.NoError(err)
	require.True(has)
}

func TestNewStorageRejectsUnknownType(t *testing.T) {
	_, err := NewStorage("leveldb", t.TempDir())
	require.Error(t, err)
}

func TestNewStorageBadger(t *testing.T) {
	require := require.New(t)

	s, err := NewStorage(TypeBadger, t.TempDir())
	require.NoError(err)
	defer s.Close()

	require.NoError(s.Put([]byte("k"), []byte("v")))
	v, err := s.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), v)
}

func TestEmptyPrefixScan(t *testing.T) {
	badger, err := NewStorage(TypeBadger, t.TempDir())
	require.NoError(t, err)

	stores := map[string]*Storage{
		"memory": NewMemory(),
		"badger": badger,
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			defer s.Close()

			it := s.NewIteratorWithPrefix([]byte("tx/"))
			require.False(it.Next())
			require.NoError(it.Error())
			it.Release()

			n, err := s.DeletePrefix([]byte("tx/"))
			require.NoError(err)
			require.Zero(n)

			require.NoError(s.Put([]byte("tx/1"), []byte("v")))
			n, err = s.DeletePrefix([]byte("tx/"))
			require.NoError(err)
			require.Equal(1, n)

			n, err = s.DeletePrefix([]byte("tx/"))
			require.NoError(err)
			require.Zero(n)
		})
	}
}

func TestEmptyPrefixScanAfterReopen(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	s, err := NewStorage(TypeBadger, dir)
	require.NoError(err)
	require.NoError(s.Close())

	s, err = NewStorage(TypeBadger, dir)
	require.NoError(err)
	defer s.Close()

	it := s.NewIteratorWithPrefix([]byte("id/"))
	defer it.Release()
	require.False(it.Next())
}
