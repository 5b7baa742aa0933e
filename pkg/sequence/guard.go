// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sequence discards results of requests that a newer request of the
// same kind has superseded.
package sequence

import "sync"

// Guard hands out increasing sequence numbers per key
type Guard struct {
	mu     sync.Mutex
	latest map[string]uint64
}

func NewGuard() *Guard {
	return &Guard{latest: make(map[string]uint64)}
}

// Begin starts a new request for key and returns its sequence number. Every
// earlier request for key is superseded.
func (g *Guard) Begin(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.latest[key]++
	return g.latest[key]
}

// IsCurrent reports whether seq is still the most recent request for key
func (g *Guard) IsCurrent(key string, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.latest[key] == seq
}
