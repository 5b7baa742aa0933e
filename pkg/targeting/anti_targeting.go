// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package targeting

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/adengine/pkg/core"
)

// AntiTargetingResource maps a creative set id to the sites whose visitors
// must not see it
type AntiTargetingResource map[string][]string

// LoadAntiTargetingResource decodes a YAML document of the form
//
//	<creative_set_id>:
//	  - https://example.com
func LoadAntiTargetingResource(r io.Reader) (AntiTargetingResource, error) {
	var res AntiTargetingResource
	if err := yaml.NewDecoder(r).Decode(&res); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode anti-targeting resource: %w", err)
	}
	if res == nil {
		res = AntiTargetingResource{}
	}
	return res, nil
}

// VisitedSites supplies the hosts the user has browsed
type VisitedSites interface {
	VisitedSites() map[string]struct{}
}

// AntiTargetingFilter drops creatives whose creative set is anti-targeted at
// a site in the user's browsing history
type AntiTargetingFilter struct {
	resource AntiTargetingResource
	visited  VisitedSites
}

func NewAntiTargetingFilter(resource AntiTargetingResource, visited VisitedSites) *AntiTargetingFilter {
	return &AntiTargetingFilter{resource: resource, visited: visited}
}

func (f *AntiTargetingFilter) Name() string { return "anti_targeting" }

func (f *AntiTargetingFilter) Apply(ads []core.CreativeAd) []core.CreativeAd {
	if len(f.resource) == 0 {
		return ads
	}
	if f.visited == nil {
		// History unavailable: drop anything that carries anti-targeting.
		return keep(ads, func(ad core.CreativeAd) bool {
			return len(f.resource[ad.CreativeSetID]) == 0
		})
	}

	visited := make(map[string]struct{})
	for site := range f.visited.VisitedSites() {
		visited[NormalizeSite(site)] = struct{}{}
	}
	return keep(ads, func(ad core.CreativeAd) bool {
		for _, site := range f.resource[ad.CreativeSetID] {
			if _, ok := visited[NormalizeSite(site)]; ok {
				return false
			}
		}
		return true
	})
}

// NormalizeSite reduces a URL or bare host to a lower-case host without a
// leading "www."
func NormalizeSite(site string) string {
	site = strings.TrimSpace(strings.ToLower(site))
	if site == "" {
		return ""
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}

	u, err := url.Parse(site)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
