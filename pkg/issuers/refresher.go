// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
	"github.com/luxfi/adengine/pkg/sequence"
)

const (
	// DefaultFallbackInterval is the retry delay after a failed refresh
	DefaultFallbackInterval = time.Minute

	refreshKey = "issuers"
)

// ErrSuperseded is returned by a refresh whose result was discarded because a
// newer refresh started after it
var ErrSuperseded = errors.New("issuers refresh superseded")

// Source supplies issuer snapshots
type Source interface {
	Fetch(ctx context.Context) (IssuersInfo, error)
}

// RefresherConfig wires a Refresher
type RefresherConfig struct {
	Source   Source
	Registry *Registry
	Clock    clock.Clock
	Metrics  *metric.Metrics

	// FallbackInterval is the delay before retrying after a failure, and the
	// cadence used when the server advertises no ping
	FallbackInterval time.Duration
}

// Refresher keeps a Registry current. After each successful fetch the next
// one is scheduled ping milliseconds later; after a failure, FallbackInterval
// later.
type Refresher struct {
	source   Source
	registry *Registry
	clock    clock.Clock
	metrics  *metric.Metrics
	fallback time.Duration
	guard    *sequence.Guard
	log      log.Logger

	// commitMu makes the currency check and the registry swap one step
	commitMu sync.Mutex

	mu      sync.Mutex
	ctx     context.Context
	timer   clock.Timer
	stopped bool
}

func NewRefresher(cfg RefresherConfig, logger log.Logger) *Refresher {
	fallback := cfg.FallbackInterval
	if fallback <= 0 {
		fallback = DefaultFallbackInterval
	}
	return &Refresher{
		source:   cfg.Source,
		registry: cfg.Registry,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		fallback: fallback,
		guard:    sequence.NewGuard(),
		log:      logger,
		ctx:      context.Background(),
	}
}

// Start performs the first refresh synchronously and keeps refreshing on the
// clock until ctx is done or Stop is called. The first refresh's error is
// returned; a retry is already scheduled when it fails.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.stopped = false
	r.mu.Unlock()

	return r.Refresh(ctx)
}

// Stop cancels any scheduled refresh
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Refresh fetches and swaps in a new snapshot, then schedules the next
// refresh. If another refresh begins while this one is fetching, this result
// is discarded and ErrSuperseded returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	seq := r.guard.Begin(refreshKey)

	info, err := r.source.Fetch(ctx)
	if !r.guard.IsCurrent(refreshKey, seq) {
		r.observe("superseded")
		r.log.Debug("discarding superseded issuers fetch", log.Uint64("seq", seq))
		return ErrSuperseded
	}
	if err != nil {
		r.observe("error")
		r.log.Warn("failed to fetch issuers",
			log.Error(err),
			log.Duration("retry_in", r.fallback))
		r.schedule(r.fallback)
		return err
	}

	changed, err := r.commit(seq, info)
	if errors.Is(err, ErrSuperseded) {
		r.observe("superseded")
		r.log.Debug("discarding superseded issuers fetch", log.Uint64("seq", seq))
		return err
	}
	if err != nil {
		r.observe("error")
		r.log.Error("failed to store issuers",
			log.Error(err),
			log.Duration("retry_in", r.fallback))
		r.schedule(r.fallback)
		return err
	}

	r.observe("success")
	if changed && r.metrics != nil {
		r.metrics.IssuerRotations.Inc()
	}

	next := info.PingInterval()
	if next <= 0 {
		next = r.fallback
	}
	r.schedule(next)
	return nil
}

// commit stores info unless a newer refresh began after seq
func (r *Refresher) commit(seq uint64, info IssuersInfo) (bool, error) {
	r.commitMu.Lock()
	defer r.commitMu.Unlock()

	if !r.guard.IsCurrent(refreshKey, seq) {
		return false, ErrSuperseded
	}
	return r.registry.Set(info)
}

func (r *Refresher) schedule(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || r.ctx.Err() != nil {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}

	ctx := r.ctx
	r.timer = r.clock.AfterFunc(d, func() {
		_ = r.Refresh(ctx)
	})
}

func (r *Refresher) observe(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.IssuerFetches.WithLabelValues(outcome).Inc()
}
