// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuers

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/luxfi/adengine/pkg/codec"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/storage"
)

var snapshotKey = []byte("issuers/snapshot")

// Registry holds the current issuer snapshot. Readers always see a complete
// snapshot; Set replaces it wholesale.
type Registry struct {
	current atomic.Pointer[IssuersInfo]

	// serializes Set so the persisted and in-memory snapshots agree
	mu  sync.Mutex
	db  *storage.Storage
	log log.Logger
}

// NewRegistry creates an empty registry. db may be nil, in which case
// snapshots are kept in memory only.
func NewRegistry(db *storage.Storage, logger log.Logger) *Registry {
	return &Registry{db: db, log: logger}
}

// Load restores the persisted snapshot, if any. It reports whether one was
// found.
func (r *Registry) Load() (bool, error) {
	if r.db == nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.db.Get(snapshotKey)
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}

	var info IssuersInfo
	if err := codec.Unmarshal(data, &info); err != nil {
		return false, fmt.Errorf("%w: decode: %w", ErrPersistence, err)
	}
	if err := info.Validate(); err != nil {
		return false, fmt.Errorf("%w: persisted snapshot: %w", ErrPersistence, err)
	}

	info = info.Clone()
	r.current.Store(&info)
	r.log.Info("issuers restored", log.Int("issuers", len(info.Issuers)))
	return true, nil
}

// Set validates info and swaps it in. The snapshot is persisted before it
// becomes visible; on a persistence failure the previous snapshot stays.
// Set reports whether the content differs from the previous snapshot.
func (r *Registry) Set(info IssuersInfo) (bool, error) {
	if err := info.Validate(); err != nil {
		return false, err
	}
	info = info.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := true
	if prev := r.current.Load(); prev != nil {
		changed = prev.HasChanged(info)
	}

	if r.db != nil && changed {
		data, err := codec.Marshal(info)
		if err != nil {
			return false, fmt.Errorf("%w: encode: %w", ErrPersistence, err)
		}
		if err := r.db.Put(snapshotKey, data); err != nil {
			return false, fmt.Errorf("%w: store: %w", ErrPersistence, err)
		}
	}

	r.current.Store(&info)
	if changed {
		r.log.Info("issuers updated",
			log.Int("issuers", len(info.Issuers)),
			log.Duration("ping", info.PingInterval()))
	}
	return changed, nil
}

// Get returns a copy of the current snapshot
func (r *Registry) Get() (IssuersInfo, bool) {
	info := r.current.Load()
	if info == nil {
		return IssuersInfo{}, false
	}
	return info.Clone(), true
}

// HasIssuers reports whether both confirmation and payment issuers are known
func (r *Registry) HasIssuers() bool {
	return r.IssuerExistsForType(IssuerTypeConfirmations) &&
		r.IssuerExistsForType(IssuerTypePayments)
}

// IssuerExistsForType reports whether the snapshot has an issuer of type t
func (r *Registry) IssuerExistsForType(t IssuerType) bool {
	info := r.current.Load()
	if info == nil {
		return false
	}
	_, ok := info.Find(t)
	return ok
}

// PublicKeyExistsForIssuerType reports whether key is advertised by the
// issuer of type t
func (r *Registry) PublicKeyExistsForIssuerType(t IssuerType, key string) bool {
	info := r.current.Load()
	if info == nil {
		return false
	}
	issuer, ok := info.Find(t)
	if !ok {
		return false
	}
	return slices.Contains(issuer.PublicKeys, key)
}
