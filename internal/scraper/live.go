package scraper

import (
	"context"
	"log/slog"

	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/rules"
)

// Pacer delays a navigation until the platform's next slot.
type Pacer interface {
	Wait(ctx context.Context, key string) error
}

// LiveFetcher renders the page in a browser session and runs the platform's
// rule chains. Name and price are required; a missing image is left empty.
type LiveFetcher struct {
	sessions SessionProvider
	pacer    Pacer
	logger   *slog.Logger
}

func NewLiveFetcher(sessions SessionProvider, logger *slog.Logger) *LiveFetcher {
	return &LiveFetcher{
		sessions: sessions,
		logger:   logger.With("component", "live_fetcher"),
	}
}

// WithPacer spaces out navigations per platform.
func (f *LiveFetcher) WithPacer(p Pacer) *LiveFetcher {
	f.pacer = p
	return f
}

func (f *LiveFetcher) Fetch(ctx context.Context, url string, rule rules.PlatformRule) (Raw, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx, string(rule.Platform)); err != nil {
			return Raw{}, err
		}
	}

	var raw Raw

	err := f.sessions.WithSession(ctx, url, rule.Settle, func(page extract.Page) error {
		raw.FinalURL = page.URL()

		name, err := extract.FieldValue(page, extract.FieldName, rule.Rules(extract.FieldName))
		if err != nil {
			return err
		}

		price, err := extract.FieldValue(page, extract.FieldPrice, rule.Rules(extract.FieldPrice))
		if err != nil {
			return err
		}

		image, err := extract.FieldValue(page, extract.FieldImage, rule.Rules(extract.FieldImage))
		if err != nil {
			f.logger.Warn("image not found, using placeholder", "platform", rule.Platform, "url", url)
			image = ""
		}

		raw.Name = name
		raw.PriceText = price
		raw.ImageURL = image
		return nil
	})
	if err != nil {
		return Raw{}, err
	}

	f.logger.Debug("fetched raw fields", "platform", rule.Platform, "final_url", raw.FinalURL, "price_text", raw.PriceText)
	return raw, nil
}
