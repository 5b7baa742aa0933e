// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage holds ledger store test doubles and a conformance suite
// shared by every ledger.Store backend.
package storage

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/luxfi/adengine/pkg/ids"
	"github.com/luxfi/adengine/pkg/ledger"
)

var _ ledger.Store = (*MockStore)(nil)

// MockStore is a testify mock of ledger.Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Insert(ctx context.Context, txs []ledger.Transaction) error {
	args := m.Called(ctx, txs)
	return args.Error(0)
}

func (m *MockStore) MarkRedeemed(ctx context.Context, id ids.ID, at time.Time) (ledger.Transaction, error) {
	args := m.Called(ctx, id, at)
	tx, _ := args.Get(0).(ledger.Transaction)
	return tx, args.Error(1)
}

func (m *MockStore) Range(ctx context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	args := m.Called(ctx, from, to)
	txs, _ := args.Get(0).([]ledger.Transaction)
	return txs, args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, id ids.ID) (ledger.Transaction, error) {
	args := m.Called(ctx, id)
	tx, _ := args.Get(0).(ledger.Transaction)
	return tx, args.Error(1)
}

func (m *MockStore) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
