// Package platform classifies product URLs into the supported shops.
package platform

import (
	"strings"

	"github.com/maltedev/pricehawk/internal/models"
)

// MarkerGroup maps a set of URL substrings to one platform.
type MarkerGroup struct {
	Platform models.Platform
	Markers  []string
}

// DefaultMarkerGroups is the built-in resolution order. Groups are checked in
// order and the first group with a matching marker wins.
var DefaultMarkerGroups = []MarkerGroup{
	{Platform: models.PlatformAmazon, Markers: []string{"amazon.", "amzn.", "a.co"}},
	{Platform: models.PlatformFlipkart, Markers: []string{"flipkart"}},
	{Platform: models.PlatformShein, Markers: []string{"shein"}},
	{Platform: models.PlatformEbay, Markers: []string{"ebay"}},
}

type Resolver struct {
	groups []MarkerGroup
}

// NewResolver copies groups so later changes by the caller cannot affect
// resolution. Markers are lower-cased.
func NewResolver(groups []MarkerGroup) *Resolver {
	copied := make([]MarkerGroup, 0, len(groups))
	for _, g := range groups {
		markers := make([]string, 0, len(g.Markers))
		for _, m := range g.Markers {
			if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
				markers = append(markers, m)
			}
		}
		copied = append(copied, MarkerGroup{Platform: g.Platform, Markers: markers})
	}
	return &Resolver{groups: copied}
}

// Resolve returns the platform of the first group with a marker contained in
// the lower-cased url, or PlatformUnknown.
func (r *Resolver) Resolve(url string) models.Platform {
	lower := strings.ToLower(url)
	for _, g := range r.groups {
		for _, m := range g.Markers {
			if strings.Contains(lower, m) {
				return g.Platform
			}
		}
	}
	return models.PlatformUnknown
}

var defaultResolver = NewResolver(DefaultMarkerGroups)

// Resolve classifies url with DefaultMarkerGroups.
func Resolve(url string) models.Platform {
	return defaultResolver.Resolve(url)
}
