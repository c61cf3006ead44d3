package parser

import (
	"strings"

	"github.com/maltedev/pricehawk/internal/models"
)

type currencyMarker struct {
	markers  []string
	currency models.Currency
}

// Checked in order; the first marker present decides.
var currencyMarkers = []currencyMarker{
	{markers: []string{"₹", "Rs"}, currency: models.CurrencyINR},
	{markers: []string{"$"}, currency: models.CurrencyUSD},
	{markers: []string{"€"}, currency: models.CurrencyEUR},
	{markers: []string{"£"}, currency: models.CurrencyGBP},
}

// fixedCurrencies are shops that only ever sell in one currency.
var fixedCurrencies = map[models.Platform]models.Currency{
	models.PlatformFlipkart: models.CurrencyINR,
}

// DetectCurrency infers the currency of a raw price string. Platforms with a
// fixed currency ignore the symbols; otherwise USD is the default.
func DetectCurrency(raw string, platform models.Platform) models.Currency {
	if c, ok := fixedCurrencies[platform]; ok {
		return c
	}

	for _, m := range currencyMarkers {
		for _, marker := range m.markers {
			if strings.Contains(raw, marker) {
				return m.currency
			}
		}
	}
	return models.CurrencyUSD
}
