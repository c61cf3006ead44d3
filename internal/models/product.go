package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// PlaceholderImageURL is used whenever a product image could not be extracted.
const PlaceholderImageURL = "https://via.placeholder.com/300"

type Platform string

const (
	PlatformAmazon   Platform = "Amazon"
	PlatformFlipkart Platform = "Flipkart"
	PlatformShein    Platform = "Shein"
	PlatformEbay     Platform = "eBay"
	PlatformUnknown  Platform = "Unknown"
)

// ParsePlatform matches a platform name case-insensitively.
func ParsePlatform(s string) Platform {
	for _, p := range []Platform{PlatformAmazon, PlatformFlipkart, PlatformShein, PlatformEbay} {
		if strings.EqualFold(s, string(p)) {
			return p
		}
	}
	return PlatformUnknown
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyINR Currency = "INR"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

var (
	ErrEmptyName     = errors.New("product name is required")
	ErrNegativePrice = errors.New("price must not be negative")
	ErrInvalidImage  = errors.New("image url is not a valid absolute url")
	ErrNoCurrency    = errors.New("currency is required")
)

// ProductSnapshot is the normalized result of one extraction. It is passed by
// value and only built through NewProductSnapshot.
type ProductSnapshot struct {
	Name     string
	Price    decimal.Decimal
	Currency Currency
	ImageURL string
	Platform Platform
}

// NewProductSnapshot validates the fields and returns a snapshot. An empty
// image URL is replaced by PlaceholderImageURL.
func NewProductSnapshot(name string, price decimal.Decimal, currency Currency, imageURL string, platform Platform) (ProductSnapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ProductSnapshot{}, ErrEmptyName
	}
	if price.IsNegative() {
		return ProductSnapshot{}, ErrNegativePrice
	}
	if currency == "" {
		return ProductSnapshot{}, ErrNoCurrency
	}

	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		imageURL = PlaceholderImageURL
	}
	if !IsValidImageURL(imageURL) {
		return ProductSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidImage, imageURL)
	}

	return ProductSnapshot{
		Name:     name,
		Price:    price,
		Currency: currency,
		ImageURL: imageURL,
		Platform: platform,
	}, nil
}

func IsValidImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate re-checks the snapshot invariants, e.g. after decoding from cache.
func (s ProductSnapshot) Validate() error {
	if s.ImageURL == "" {
		return ErrInvalidImage
	}
	_, err := NewProductSnapshot(s.Name, s.Price, s.Currency, s.ImageURL, s.Platform)
	return err
}

type snapshotJSON struct {
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Currency Currency    `json:"currency"`
	ImageURL string      `json:"image_url"`
	Platform Platform    `json:"platform"`
}

// MarshalJSON writes the price as a JSON number, matching what API clients
// already consume.
func (s ProductSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Name:     s.Name,
		Price:    json.Number(s.Price.String()),
		Currency: s.Currency,
		ImageURL: s.ImageURL,
		Platform: s.Platform,
	})
}

func (s *ProductSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	price, err := decimal.NewFromString(raw.Price.String())
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", raw.Price, err)
	}

	*s = ProductSnapshot{
		Name:     raw.Name,
		Price:    price,
		Currency: raw.Currency,
		ImageURL: raw.ImageURL,
		Platform: raw.Platform,
	}
	return nil
}
