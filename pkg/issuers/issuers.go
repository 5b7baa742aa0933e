// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package issuers tracks the token issuers, and their public keys, that
// confirmations and payments are redeemed against.
package issuers

import (
	"cmp"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/luxfi/crypto/hashing"

	"github.com/luxfi/adengine/pkg/codec"
)

const (
	// MaxPublicKeys is the most keys a single issuer may advertise
	MaxPublicKeys = 3

	publicKeySize = 32
)

var (
	ErrUnknownIssuerType   = errors.New("unknown issuer type")
	ErrDuplicateIssuerType = errors.New("duplicate issuer type")
	ErrTooManyPublicKeys   = errors.New("too many public keys")
	ErrInvalidPublicKey    = errors.New("invalid public key")
	ErrInvalidPing         = errors.New("invalid ping")
	ErrPersistence         = errors.New("issuers persistence failure")
)

// IssuerType names what an issuer signs tokens for
type IssuerType string

const (
	IssuerTypeConfirmations IssuerType = "confirmations"
	IssuerTypePayments      IssuerType = "payments"
)

func (t IssuerType) IsValid() bool {
	return t == IssuerTypeConfirmations || t == IssuerTypePayments
}

func (t IssuerType) String() string {
	return string(t)
}

// IssuerInfo is one issuer and its advertised public keys, base64 encoded
type IssuerInfo struct {
	Type       IssuerType `json:"name" cbor:"1,keyasint"`
	PublicKeys []string   `json:"publicKeys" cbor:"2,keyasint"`
}

// IssuersInfo is a complete issuer snapshot. Ping is the refresh cadence in
// milliseconds.
type IssuersInfo struct {
	Ping    int64        `json:"ping" cbor:"1,keyasint"`
	Issuers []IssuerInfo `json:"issuers" cbor:"2,keyasint"`
}

// PingInterval returns Ping as a duration
func (info IssuersInfo) PingInterval() time.Duration {
	return time.Duration(info.Ping) * time.Millisecond
}

// Find returns the issuer of type t
func (info IssuersInfo) Find(t IssuerType) (IssuerInfo, bool) {
	for _, issuer := range info.Issuers {
		if issuer.Type == t {
			return issuer, true
		}
	}
	return IssuerInfo{}, false
}

// Validate checks issuer types, key counts and key encodings
func (info IssuersInfo) Validate() error {
	if info.Ping < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPing, info.Ping)
	}

	seen := make(map[IssuerType]struct{}, len(info.Issuers))
	for _, issuer := range info.Issuers {
		if !issuer.Type.IsValid() {
			return fmt.Errorf("%w: %q", ErrUnknownIssuerType, issuer.Type)
		}
		if _, ok := seen[issuer.Type]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateIssuerType, issuer.Type)
		}
		seen[issuer.Type] = struct{}{}

		if len(issuer.PublicKeys) > MaxPublicKeys {
			return fmt.Errorf("%w: %s has %d", ErrTooManyPublicKeys, issuer.Type, len(issuer.PublicKeys))
		}
		for _, key := range issuer.PublicKeys {
			if err := validatePublicKey(key); err != nil {
				return fmt.Errorf("%s: %w", issuer.Type, err)
			}
		}
	}
	return nil
}

func validatePublicKey(key string) error {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidPublicKey, key, err)
	}
	if len(raw) != publicKeySize {
		return fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidPublicKey, key, len(raw))
	}
	return nil
}

// Clone returns a deep copy with issuers ordered by type
func (info IssuersInfo) Clone() IssuersInfo {
	out := IssuersInfo{
		Ping:    info.Ping,
		Issuers: make([]IssuerInfo, 0, len(info.Issuers)),
	}
	for _, issuer := range info.Issuers {
		out.Issuers = append(out.Issuers, IssuerInfo{
			Type:       issuer.Type,
			PublicKeys: append([]string{}, issuer.PublicKeys...),
		})
	}
	slices.SortFunc(out.Issuers, func(a, b IssuerInfo) int {
		return cmp.Compare(a.Type, b.Type)
	})
	return out
}

// Digest is a content hash of the snapshot. Issuer order does not matter,
// key order does.
func (info IssuersInfo) Digest() ([]byte, error) {
	data, err := codec.Marshal(info.Clone())
	if err != nil {
		return nil, err
	}
	return hashing.ComputeHash256(data), nil
}

// HasChanged reports whether other differs in content from info
func (info IssuersInfo) HasChanged(other IssuersInfo) bool {
	a, err := info.Digest()
	if err != nil {
		return true
	}
	b, err := other.Digest()
	if err != nil {
		return true
	}
	return !slices.Equal(a, b)
}
