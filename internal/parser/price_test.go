package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricehawk/internal/models"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"rupee with grouping", "₹1,499.00", "1499.00"},
		{"dollar", "$14.99", "14.99"},
		{"euro suffix", "19.99 €", "19.99"},
		{"pound", "£5", "5"},
		{"rs prefix without dot", "Rs 2,999", "2999"},
		{"surrounding text", "Now only US $1,234.50", "1234.50"},
		{"whole number", "499", "499"},
		{"leading dot", ".99", "0.99"},
		{"decimal comma is stripped", "14,99 €", "1499"},
		{"rs prefix dot survives", "Rs. 2,999", "0.2999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)), "got %s, want %s", got, tt.expected)
		})
	}
}

func TestNormalizePrice_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no digits", "Rs."},
		{"empty", ""},
		{"text only", "Currently unavailable"},
		{"bare dot", "."},
		{"two dots", "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizePrice(tt.input)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.input, parseErr.Raw)
		})
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		platform models.Platform
		expected models.Currency
	}{
		{"dollar on amazon", "$14.99", models.PlatformAmazon, models.CurrencyUSD},
		{"euro on amazon", "€14.99", models.PlatformAmazon, models.CurrencyEUR},
		{"pound on ebay", "£20.00", models.PlatformEbay, models.CurrencyGBP},
		{"rupee on amazon", "₹1,499.00", models.PlatformAmazon, models.CurrencyINR},
		{"rs on shein", "Rs. 799", models.PlatformShein, models.CurrencyINR},
		{"no symbol defaults to usd", "14.99", models.PlatformShein, models.CurrencyUSD},
		{"rupee wins over dollar", "₹1,499 ($18)", models.PlatformEbay, models.CurrencyINR},
		{"dollar wins over euro", "€12 / $13", models.PlatformEbay, models.CurrencyUSD},
		{"flipkart ignores dollar", "$14.99", models.PlatformFlipkart, models.CurrencyINR},
		{"flipkart ignores euro", "€14.99", models.PlatformFlipkart, models.CurrencyINR},
		{"flipkart without symbol", "1499", models.PlatformFlipkart, models.CurrencyINR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectCurrency(tt.raw, tt.platform))
		})
	}
}
