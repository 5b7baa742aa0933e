// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stores

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adengine/pkg/config"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/storage"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"memory", config.StorageConfig{Type: storage.TypeMemory}},
		{"badger", config.StorageConfig{Type: storage.TypeBadger, Path: filepath.Join(dir, "badger")}},
		{"sqlite", config.StorageConfig{Type: config.StorageSQLite, Path: filepath.Join(dir, "ledger.db")}},
		{"sqlite with state", config.StorageConfig{
			Type:      config.StorageSQLite,
			Path:      filepath.Join(dir, "ledger2.db"),
			StatePath: filepath.Join(dir, "state"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			s, err := Open(tt.cfg)
			require.NoError(err)

			tx := ledger.Transaction{
				ID:               ids.Generate(),
				CreatedAt:        time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC),
				Value:            decimal.RequireFromString("0.05"),
				ConfirmationType: core.ConfirmationTypeViewed,
			}
			require.NoError(s.Ledger.Insert(t.Context(), []ledger.Transaction{tx}))

			got, err := s.Ledger.Get(t.Context(), tx.ID)
			require.NoError(err)
			require.Equal(tx.ID, got.ID)

			require.NoError(s.State.Put([]byte("k"), []byte("v")))
			require.NoError(s.Close())
		})
	}
}

func TestOpenUnknownType(t *testing.T) {
	_, err := Open(config.StorageConfig{Type: "postgres"})
	require.Error(t, err)
}
