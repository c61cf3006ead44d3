// Package scraper turns a product URL into a ProductSnapshot.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/rules"
)

// UnsupportedPlatformError is returned for URLs that match no known shop. No
// browser session is opened for them.
type UnsupportedPlatformError struct {
	URL string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("supported platforms: Amazon, Flipkart, Shein, eBay. Got: %s", e.URL)
}

// ExtractionError wraps every failure after the platform is known, so callers
// get the platform and URL along with the typed cause.
type ExtractionError struct {
	Platform models.Platform
	URL      string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to scrape %s: %v", e.Platform, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Raw holds the unparsed field values read from a product page.
type Raw struct {
	Name      string
	PriceText string
	ImageURL  string
	FinalURL  string
}

// Fetcher reads the raw fields for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, rule rules.PlatformRule) (Raw, error)
}

// SessionProvider runs fn against a loaded page and releases the page before
// returning. browser.Manager is the production implementation.
type SessionProvider interface {
	WithSession(ctx context.Context, url string, settle time.Duration, fn func(extract.Page) error) error
}

// RuleSource resolves platforms and their extraction rules.
type RuleSource interface {
	Resolve(url string) models.Platform
	Lookup(p models.Platform) (rules.PlatformRule, bool)
}
