package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/models"
)

func TestDefault(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	for _, p := range []models.Platform{models.PlatformAmazon, models.PlatformFlipkart, models.PlatformShein, models.PlatformEbay} {
		rule, ok := table.Lookup(p)
		require.True(t, ok, "missing rules for %s", p)
		assert.NotEmpty(t, rule.Rules(extract.FieldName))
		assert.NotEmpty(t, rule.Rules(extract.FieldPrice))
		assert.NotEmpty(t, rule.Rules(extract.FieldImage))
	}

	_, ok := table.Lookup(models.PlatformUnknown)
	assert.False(t, ok)
}

func TestDefault_KeepsRuleOrder(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	amazon, _ := table.Lookup(models.PlatformAmazon)
	price := amazon.Rules(extract.FieldPrice)
	require.Len(t, price, 9)
	assert.Equal(t, ".a-price .a-offscreen", price[0].Selector)
	assert.Equal(t, "#priceblock_ourprice", price[1].Selector)
	assert.Equal(t, extract.ModeScript, price[len(price)-1].Mode)
	assert.Equal(t, 3*time.Second, amazon.Settle)

	shein, _ := table.Lookup(models.PlatformShein)
	assert.Equal(t, []string{"data:"}, shein.Rules(extract.FieldImage)[0].RejectPrefixes)
}

func TestTable_Resolve(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	assert.Equal(t, models.PlatformAmazon, table.Resolve("https://a.co/d/0hBsOaTn"))
	assert.Equal(t, models.PlatformFlipkart, table.Resolve("https://www.flipkart.com/p/itm1"))
	assert.Equal(t, models.PlatformShein, table.Resolve("https://us.shein.com/x-p-1.html"))
	assert.Equal(t, models.PlatformEbay, table.Resolve("https://www.ebay.com/itm/1"))
	assert.Equal(t, models.PlatformUnknown, table.Resolve("https://example.com/item"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", `version: 1`},
		{"unknown platform", `
platforms:
  - platform: Etsy
    url_markers: [etsy]
    fields:
      name: [{selector: h1}]
      price: [{selector: .price}]`},
		{"missing price rules", `
platforms:
  - platform: eBay
    url_markers: [ebay]
    fields:
      name: [{selector: h1}]`},
		{"no markers", `
platforms:
  - platform: eBay
    fields:
      name: [{selector: h1}]
      price: [{selector: .price}]`},
		{"attribute without name", `
platforms:
  - platform: eBay
    url_markers: [ebay]
    fields:
      name: [{selector: h1}]
      price: [{selector: .price}]
      image: [{selector: img, mode: attribute}]`},
		{"duplicate platform", `
platforms:
  - platform: eBay
    url_markers: [ebay]
    fields: {name: [{selector: h1}], price: [{selector: .p}]}
  - platform: eBay
    url_markers: [ebay]
    fields: {name: [{selector: h1}], price: [{selector: .p}]}`},
		{"not yaml", `platforms: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 9
platforms:
  - platform: eBay
    url_markers: [ebay, "ebay.to"]
    fields:
      name: [{selector: "h1.new-title"}]
      price: [{selector: ".new-price"}]
`), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, table.Version)

	ebay, ok := table.Lookup(models.PlatformEbay)
	require.True(t, ok)
	assert.Equal(t, "h1.new-title", ebay.Rules(extract.FieldName)[0].Selector)
	assert.Empty(t, ebay.Rules(extract.FieldImage))
	assert.Equal(t, models.PlatformUnknown, table.Resolve("https://www.amazon.com/dp/1"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
