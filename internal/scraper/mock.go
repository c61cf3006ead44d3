package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/rules"
)

type priceBand struct {
	min, max float64
	symbol   string
}

var mockPriceBands = map[models.Platform]priceBand{
	models.PlatformAmazon:   {min: 20, max: 500, symbol: "$"},
	models.PlatformShein:    {min: 10, max: 80, symbol: "$"},
	models.PlatformFlipkart: {min: 500, max: 5000, symbol: "₹"},
	models.PlatformEbay:     {min: 15, max: 300, symbol: "$"},
}

var mockProductNames = []string{
	"Wireless Bluetooth Headphones",
	"Smart Watch Series 5",
	"USB-C Fast Charging Cable",
	"Portable Power Bank 20000mAh",
	"Casual Cotton T-Shirt",
	"Running Shoes Lightweight",
	"Stainless Steel Water Bottle",
	"LED Desk Lamp with USB Port",
}

// MockFetcher generates plausible raw fields without touching the network.
// It is used when live extraction is switched off.
type MockFetcher struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockFetcher seeds the generator; the same seed yields the same sequence.
func NewMockFetcher(seed int64) *MockFetcher {
	return &MockFetcher{rnd: rand.New(rand.NewSource(seed))}
}

func NewRandomMockFetcher() *MockFetcher {
	return NewMockFetcher(time.Now().UnixNano())
}

func (f *MockFetcher) Fetch(ctx context.Context, url string, rule rules.PlatformRule) (Raw, error) {
	if err := ctx.Err(); err != nil {
		return Raw{}, err
	}

	band, ok := mockPriceBands[rule.Platform]
	if !ok {
		band = priceBand{min: 20, max: 200, symbol: "$"}
	}

	f.mu.Lock()
	price := band.min + f.rnd.Float64()*(band.max-band.min)
	name := mockProductNames[f.rnd.Intn(len(mockProductNames))]
	imageID := f.rnd.Intn(1000) + 1
	f.mu.Unlock()

	return Raw{
		Name:      fmt.Sprintf("%s - %s", rule.Platform, name),
		PriceText: fmt.Sprintf("%s%.2f", band.symbol, price),
		ImageURL:  fmt.Sprintf("https://picsum.photos/400/400?random=%d", imageID),
		FinalURL:  url,
	}, nil
}
