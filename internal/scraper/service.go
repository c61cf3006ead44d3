package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/parser"
)

const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Service resolves the platform, fetches the raw fields and normalizes them
// into a snapshot. It holds no per-call state.
type Service struct {
	rules   RuleSource
	fetcher Fetcher
	mode    string
	logger  *slog.Logger
}

func NewService(rules RuleSource, fetcher Fetcher, mode string, logger *slog.Logger) *Service {
	return &Service{
		rules:   rules,
		fetcher: fetcher,
		mode:    mode,
		logger:  logger.With("component", "scraper"),
	}
}

func (s *Service) Mode() string {
	return s.mode
}

// Extract returns a complete snapshot or a typed error; it never returns a
// partial snapshot.
func (s *Service) Extract(ctx context.Context, rawURL string) (models.ProductSnapshot, error) {
	platform := s.rules.Resolve(rawURL)
	if platform == models.PlatformUnknown {
		return models.ProductSnapshot{}, &UnsupportedPlatformError{URL: rawURL}
	}

	rule, ok := s.rules.Lookup(platform)
	if !ok {
		return models.ProductSnapshot{}, &UnsupportedPlatformError{URL: rawURL}
	}

	start := time.Now()
	s.logger.Info("scraping product", "platform", platform, "url", rawURL, "mode", s.mode)

	raw, err := s.fetcher.Fetch(ctx, rawURL, rule)
	if err != nil {
		return models.ProductSnapshot{}, s.fail(platform, rawURL, err)
	}

	amount, err := parser.NormalizePrice(raw.PriceText)
	if err != nil {
		return models.ProductSnapshot{}, s.fail(platform, rawURL, err)
	}
	currency := parser.DetectCurrency(raw.PriceText, platform)

	snapshot, err := models.NewProductSnapshot(raw.Name, amount, currency, resolveImageURL(raw.ImageURL, raw.FinalURL), platform)
	if err != nil {
		return models.ProductSnapshot{}, s.fail(platform, rawURL, err)
	}

	s.logger.Info("product scraped",
		"platform", platform,
		"url", rawURL,
		"final_url", raw.FinalURL,
		"price", snapshot.Price.String(),
		"currency", snapshot.Currency,
		"duration", time.Since(start),
	)
	return snapshot, nil
}

func (s *Service) fail(platform models.Platform, rawURL string, err error) error {
	s.logger.Error("scraping failed", "platform", platform, "url", rawURL, "error", err)
	return &ExtractionError{Platform: platform, URL: rawURL, Err: err}
}

// resolveImageURL makes protocol-relative and relative image URLs absolute
// against the final page URL. Anything unusable becomes empty, which the
// snapshot replaces with the placeholder.
func resolveImageURL(image, pageURL string) string {
	if image == "" {
		return ""
	}
	if models.IsValidImageURL(image) {
		return image
	}

	ref, err := url.Parse(image)
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" {
		return ""
	}

	resolved := base.ResolveReference(ref).String()
	if !models.IsValidImageURL(resolved) {
		return ""
	}
	return resolved
}
