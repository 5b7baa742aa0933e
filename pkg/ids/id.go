// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a globally unique identifier (a random RFC 4122 GUID)
type ID string

// Empty is the zero ID
const Empty ID = ""

// namespace scopes name-derived IDs
var namespace = uuid.MustParse("6f0c7a8e-3b52-4c1e-9d7a-2f4b8e61c0d5")

// Generate creates a fresh random ID
func Generate() ID {
	return ID(uuid.NewString())
}

// FromName derives a name-based (version 5) ID. The same name always yields
// the same ID.
func FromName(name string) ID {
	return ID(uuid.NewSHA1(namespace, []byte(name)).String())
}

// GenerateTestID creates a random ID for testing
func GenerateTestID() ID {
	return Generate()
}

// String returns the canonical representation of the ID
func (id ID) String() string {
	return string(id)
}

// IsEmpty reports whether the ID is unset
func (id ID) IsEmpty() bool {
	return id == Empty
}

// FromString parses and canonicalizes an ID
func FromString(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return Empty, fmt.Errorf("invalid ID %q: %w", s, err)
	}
	return ID(parsed.String()), nil
}
