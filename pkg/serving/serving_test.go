// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serving

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/core"
	"github.com/luxfi/adengine/pkg/frequency"
	"github.com/luxfi/adengine/pkg/history"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/metric"
	"github.com/luxfi/adengine/pkg/targeting"
)

var now = time.Date(2021, time.March, 15, 12, 0, 0, 0, time.UTC)

type staticIssuers bool

func (s staticIssuers) HasIssuers() bool { return bool(s) }

type fakeCatalog struct {
	ads   []core.CreativeAd
	err   error
	calls int
	hook  func()
}

func (c *fakeCatalog) FetchCandidates(_ context.Context, adType core.AdType, constraints core.Constraints) ([]core.CreativeAd, error) {
	c.calls++
	if c.hook != nil {
		c.hook()
	}
	if c.err != nil {
		return nil, c.err
	}

	var out []core.CreativeAd
	for _, ad := range c.ads {
		if ad.Type != adType {
			continue
		}
		if constraints.Dimensions != nil && !core.SameDimensions(ad.Dimensions, *constraints.Dimensions) {
			continue
		}
		out = append(out, ad)
	}
	return out, nil
}

func buildNotification(instanceID, setID string) core.CreativeAd {
	return core.CreativeAd{
		CreativeInstanceID: instanceID,
		CreativeSetID:      setID,
		CampaignID:         "84197fc8-830a-4a8e-8339-7a70c2bfa104",
		Type:               core.AdTypeNotification,
		Segment:            "untargeted",
		PerDay:             3,
		DailyCap:           5,
		TotalMax:           10,
	}
}

func buildInline(instanceID, setID string, w, h int64) core.CreativeAd {
	ad := buildNotification(instanceID, setID)
	ad.Type = core.AdTypeInlineContent
	ad.Dimensions = openrtb2.Format{W: w, H: h}
	return ad
}

type fixture struct {
	history *history.Store
	catalog *fakeCatalog
	deps    frequency.Deps
}

func newFixture(ads ...core.CreativeAd) *fixture {
	h := history.NewStore(log.NoOp())
	h.RecordUserActivity(core.ActivityOpenedNewTab, now.Add(-time.Minute))
	h.RecordUserActivity(core.ActivityClosedTab, now)

	return &fixture{
		history: h,
		catalog: &fakeCatalog{ads: ads},
		deps: frequency.Deps{
			History:  h,
			Flagged:  h,
			OptOuts:  h,
			Activity: h,
			Issuers:  staticIssuers(true),
			Platform: frequency.StaticPlatform(false),
			Clock:    clock.Fake(now),
		},
	}
}

func (f *fixture) server(t *testing.T, metrics *metric.Metrics) *Server {
	t.Helper()
	return NewServer(Config{
		Catalog:  f.catalog,
		Deps:     f.deps,
		Settings: frequency.DefaultSettings(),
		Metrics:  metrics,
	}, log.NoOp())
}

func requireNotServed(t *testing.T, err error, target error) *NotServedError {
	t.Helper()

	var notServed *NotServedError
	require.True(t, errors.As(err, &notServed), "expected *NotServedError, got %v", err)
	require.ErrorIs(t, err, target)
	return notServed
}

func TestServeAdNotification(t *testing.T) {
	require := require.New(t)

	ad := buildNotification("3519f52c-46a4-4c48-9c2b-c264c0067f04", "c2ba3e7d-f688-4bc4-a053-cbe7ac1e6123")
	f := newFixture(ad)

	chosen, err := f.server(t, nil).MaybeServeAdNotification(context.Background())
	require.NoError(err)
	require.Equal(ad, chosen.Ad)
	require.False(chosen.PlacementID.IsEmpty())
	require.Nil(chosen.Dimensions)
	require.Equal(now, chosen.ServedAt)
}

func TestServeInlineContentAd(t *testing.T) {
	require := require.New(t)

	f := newFixture(
		buildInline("small", "set-small", 200, 100),
		buildInline("large", "set-large", 300, 250),
	)

	chosen, err := f.server(t, nil).MaybeServeInlineContentAd(context.Background(), "200x100")
	require.NoError(err)
	require.Equal("small", chosen.Ad.CreativeInstanceID)
	require.Equal(&openrtb2.Format{W: 200, H: 100}, chosen.Dimensions)
}

func TestDoNotServeInlineContentAdForInvalidDimensions(t *testing.T) {
	f := newFixture(buildInline("small", "set-small", 200, 100))
	s := f.server(t, nil)

	for _, dims := range []string{"?x?", "200x", "*x100", "", "0x0"} {
		t.Run(dims, func(t *testing.T) {
			_, err := s.MaybeServeInlineContentAd(context.Background(), dims)
			requireNotServed(t, err, ErrInvalidDimensions)
		})
	}
	require.Zero(t, f.catalog.calls, "invalid dimensions must fail before any fetch")
}

func TestDoNotServeInlineContentAdForUnavailableDimensions(t *testing.T) {
	f := newFixture(buildInline("small", "set-small", 200, 100))

	_, err := f.server(t, nil).MaybeServeInlineContentAd(context.Background(), "300x250")
	notServed := requireNotServed(t, err, ErrNoEligibleAds)
	require.Contains(t, notServed.Reason, "300x250")
}

func TestDoNotServeAdIfNotAllowedDueToPermissionRules(t *testing.T) {
	f := newFixture(buildNotification("a", "set-a"))
	f.deps.Activity = history.NewStore(log.NoOp())

	_, err := f.server(t, nil).MaybeServeAdNotification(context.Background())
	notServed := requireNotServed(t, err, ErrNotAllowed)
	require.Equal(t, "User was inactive", notServed.Reason)
	require.Zero(t, f.catalog.calls, "permission rules gate the catalog fetch")
}

func TestDoNotServeAdWithoutIssuers(t *testing.T) {
	f := newFixture(buildNotification("a", "set-a"))
	f.deps.Issuers = staticIssuers(false)

	_, err := f.server(t, nil).MaybeServeAdNotification(context.Background())
	notServed := requireNotServed(t, err, ErrNotAllowed)
	require.Equal(t, "Missing issuers", notServed.Reason)
}

func TestDoNotServeAdIfNoEligibleAdsFound(t *testing.T) {
	f := newFixture()

	_, err := f.server(t, nil).MaybeServeAdNotification(context.Background())
	requireNotServed(t, err, ErrNoEligibleAds)
}

func TestDoNotServeAdWhenCatalogFails(t *testing.T) {
	f := newFixture(buildNotification("a", "set-a"))
	f.catalog.err = errors.New("database locked")

	_, err := f.server(t, nil).MaybeServeAdNotification(context.Background())
	requireNotServed(t, err, ErrCatalogUnavailable)
	require.ErrorContains(t, err, "catalog unavailable")
}

func TestNeverServeFlaggedCreativeSet(t *testing.T) {
	require := require.New(t)

	flagged := buildNotification("flagged-1", "flagged-set")
	sibling := buildNotification("flagged-2", "flagged-set")
	clean := buildNotification("clean", "clean-set")
	f := newFixture(flagged, sibling, clean)
	f.history.ToggleFlaggedAd(core.ContentFor(flagged, core.ConfirmationTypeFlagged))

	s := f.server(t, nil)
	for i := 0; i < 50; i++ {
		chosen, err := s.MaybeServeAdNotification(context.Background())
		require.NoError(err)
		require.Equal("clean", chosen.Ad.CreativeInstanceID)
	}

	f.catalog.ads = []core.CreativeAd{flagged, sibling}
	_, err := s.MaybeServeAdNotification(context.Background())
	requireNotServed(t, err, ErrNoEligibleAds)
}

func TestServeAppliesTargetingFilters(t *testing.T) {
	require := require.New(t)

	ca := buildNotification("ca", "set-ca")
	ca.GeoTargets = []string{"US-CA"}
	ny := buildNotification("ny", "set-ny")
	ny.GeoTargets = []string{"US-NY"}
	f := newFixture(ca, ny)

	s := NewServer(Config{
		Catalog: f.catalog,
		Filters: targeting.Filters{
			targeting.NewSubdivisionFilter(targeting.StaticGeo{Location: &openrtb2.Geo{Country: "US", Region: "NY"}}),
		},
		Deps:     f.deps,
		Settings: frequency.DefaultSettings(),
	}, log.NoOp())

	chosen, err := s.MaybeServeAdNotification(context.Background())
	require.NoError(err)
	require.Equal("ny", chosen.Ad.CreativeInstanceID)
}

func TestServeRespectsFrequencyCaps(t *testing.T) {
	require := require.New(t)

	ad := buildNotification("a", "set-a")
	f := newFixture(ad)
	f.history.Record(ad, core.ConfirmationTypeViewed, now.Add(-45*time.Minute))

	_, err := f.server(t, nil).MaybeServeAdNotification(context.Background())
	requireNotServed(t, err, ErrNoEligibleAds)
	require.Equal(1, f.catalog.calls)
}

func TestUnsupportedAdType(t *testing.T) {
	f := newFixture()

	_, err := f.server(t, nil).MaybeServeAd(context.Background(), Request{Type: "popup"})
	requireNotServed(t, err, ErrInvalidAdType)
}

func TestSupersededRequestIsDiscarded(t *testing.T) {
	require := require.New(t)

	f := newFixture(buildNotification("a", "set-a"))
	s := f.server(t, nil)

	var newer *ChosenAd
	var newerErr error
	f.catalog.hook = func() {
		// A newer request of the same format arrives while the first one
		// is waiting on the catalog.
		f.catalog.hook = nil
		newer, newerErr = s.MaybeServeAdNotification(context.Background())
	}

	_, err := s.MaybeServeAdNotification(context.Background())
	requireNotServed(t, err, ErrSuperseded)

	require.NoError(newerErr)
	require.Equal("a", newer.Ad.CreativeInstanceID)
}

func TestServeMetrics(t *testing.T) {
	require := require.New(t)

	metrics, err := metric.NewMetrics()
	require.NoError(err)

	f := newFixture(buildNotification("a", "set-a"))
	s := f.server(t, metrics)

	_, err = s.MaybeServeAdNotification(context.Background())
	require.NoError(err)
	_, err = s.MaybeServeInlineContentAd(context.Background(), "?x?")
	require.Error(err)

	require.Equal(1.0, metrics.Value("serving_ads_served_total", metric.Labels{"type": "ad_notification"}))
	require.Equal(1.0, metrics.Value("serving_ads_not_served_total", metric.Labels{"type": "inline_content_ad", "reason": "invalid_dimensions"}))
}

func TestSelectors(t *testing.T) {
	require := require.New(t)

	ads := []core.CreativeAd{
		{CreativeInstanceID: "low", Priority: 1},
		{CreativeInstanceID: "high", Priority: 5},
		{CreativeInstanceID: "low-2", Priority: 1},
	}

	p := NewPrioritySelector()
	for i := 0; i < 20; i++ {
		require.Equal(1, p.Select(ads).Priority)
	}

	r := &RandomSelector{intN: func(n int) int { return n - 1 }}
	require.Equal("low-2", r.Select(ads).CreativeInstanceID)

	for _, name := range []string{"", SelectorRandom, SelectorPriority} {
		_, err := NewSelector(name)
		require.NoError(err)
	}
	_, err := NewSelector("weighted")
	require.Error(err)
}
