package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductSnapshot(t *testing.T) {
	price := decimal.RequireFromString("14.99")

	t.Run("valid snapshot", func(t *testing.T) {
		s, err := NewProductSnapshot("  Widget ", price, CurrencyUSD, "https://img.example.com/a.jpg", PlatformAmazon)
		require.NoError(t, err)
		assert.Equal(t, "Widget", s.Name)
		assert.True(t, s.Price.Equal(price))
		assert.Equal(t, "https://img.example.com/a.jpg", s.ImageURL)
	})

	t.Run("empty image falls back to placeholder", func(t *testing.T) {
		s, err := NewProductSnapshot("Widget", price, CurrencyUSD, "", PlatformEbay)
		require.NoError(t, err)
		assert.Equal(t, PlaceholderImageURL, s.ImageURL)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewProductSnapshot("   ", price, CurrencyUSD, "", PlatformEbay)
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := NewProductSnapshot("Widget", decimal.NewFromInt(-1), CurrencyUSD, "", PlatformEbay)
		assert.ErrorIs(t, err, ErrNegativePrice)
	})

	t.Run("relative image url", func(t *testing.T) {
		_, err := NewProductSnapshot("Widget", price, CurrencyUSD, "/images/a.jpg", PlatformShein)
		assert.ErrorIs(t, err, ErrInvalidImage)
	})
}

func TestProductSnapshotJSON(t *testing.T) {
	s, err := NewProductSnapshot("Widget", decimal.RequireFromString("1499.00"), CurrencyINR, "", PlatformFlipkart)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Widget",
		"price": 1499,
		"currency": "INR",
		"image_url": "https://via.placeholder.com/300",
		"platform": "Flipkart"
	}`, string(data))

	var decoded ProductSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Price.Equal(s.Price))
	assert.Equal(t, s.Name, decoded.Name)
	assert.NoError(t, decoded.Validate())
}

func TestParsePlatform(t *testing.T) {
	assert.Equal(t, PlatformEbay, ParsePlatform("ebay"))
	assert.Equal(t, PlatformAmazon, ParsePlatform("AMAZON"))
	assert.Equal(t, PlatformUnknown, ParsePlatform("etsy"))
}
