// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package history keeps the client-side record of ad interactions, flagged
// creative sets, opted-out segments and browsing activity that frequency
// rules evaluate.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/log"
)

// Store is an append-mostly, time-ordered interaction log
type Store struct {
	mu       sync.RWMutex
	entries  []core.AdHistoryEntry
	flagged  map[string]struct{} // creative set ids
	optedOut map[string]struct{} // segments
	activity []core.ActivityEvent
	visited  map[string]struct{} // hosts
	log      log.Logger
}

// NewStore creates an empty history store
func NewStore(logger log.Logger) *Store {
	return &Store{
		flagged:  make(map[string]struct{}),
		optedOut: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		log:      logger,
	}
}

// Append adds an entry, keeping entries ordered by timestamp
func (s *Store) Append(entry core.AdHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Timestamp.After(entry.Timestamp)
	})
	s.entries = append(s.entries, core.AdHistoryEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry
}

// Record appends an interaction with ad at the given time
func (s *Store) Record(ad core.CreativeAd, confirmationType core.ConfirmationType, at time.Time) {
	s.Append(core.AdHistoryEntry{
		Timestamp: at,
		Content:   core.ContentFor(ad, confirmationType),
	})

	s.log.Debug("ad interaction recorded",
		log.String("creative_instance_id", ad.CreativeInstanceID),
		log.String("confirmation_type", confirmationType.String()))
}

// History returns a copy of all entries in timestamp order
func (s *Store) History() []core.AdHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.AdHistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// PurgeBefore drops entries older than cutoff and returns how many were removed
func (s *Store) PurgeBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Timestamp.Before(cutoff)
	})
	s.entries = append([]core.AdHistoryEntry(nil), s.entries[i:]...)

	j := sort.Search(len(s.activity), func(j int) bool {
		return !s.activity[j].Timestamp.Before(cutoff)
	})
	s.activity = append([]core.ActivityEvent(nil), s.activity[j:]...)

	return i
}

// ToggleFlaggedAd flips the flagged state of the content's creative set and
// returns the new state
func (s *Store) ToggleFlaggedAd(content core.AdContent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flagged[content.CreativeSetID]; ok {
		delete(s.flagged, content.CreativeSetID)
		return false
	}
	s.flagged[content.CreativeSetID] = struct{}{}
	return true
}

// FlaggedCreativeSets returns a copy of the flagged creative set ids
func (s *Store) FlaggedCreativeSets() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.flagged))
	for id := range s.flagged {
		out[id] = struct{}{}
	}
	return out
}

// ToggleOptOut flips whether the user no longer wants ads for segment
func (s *Store) ToggleOptOut(segment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.optedOut[segment]; ok {
		delete(s.optedOut, segment)
		return false
	}
	s.optedOut[segment] = struct{}{}
	return true
}

// OptedOutSegments returns a copy of the opted-out segments
func (s *Store) OptedOutSegments() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.optedOut))
	for segment := range s.optedOut {
		out[segment] = struct{}{}
	}
	return out
}

// RecordUserActivity appends a browsing signal
func (s *Store) RecordUserActivity(eventType core.ActivityEventType, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := core.ActivityEvent{Type: eventType, Timestamp: at}
	i := sort.Search(len(s.activity), func(i int) bool {
		return s.activity[i].Timestamp.After(at)
	})
	s.activity = append(s.activity, core.ActivityEvent{})
	copy(s.activity[i+1:], s.activity[i:])
	s.activity[i] = event
}

// UserActivity returns a copy of recorded browsing signals in time order
func (s *Store) UserActivity() []core.ActivityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ActivityEvent, len(s.activity))
	copy(out, s.activity)
	return out
}

// RecordSiteVisit remembers that the user browsed site
func (s *Store) RecordSiteVisit(site string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visited[site] = struct{}{}
}

// VisitedSites returns a copy of the browsed sites
func (s *Store) VisitedSites() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{}, len(s.visited))
	for site := range s.visited {
		out[site] = struct{}{}
	}
	return out
}
