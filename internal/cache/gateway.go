package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/pricehawk/internal/models"
)

const (
	DefaultTTL = time.Hour
	keyPrefix  = "price:"
)

// Key builds the cache key for a product.
func Key(productID string) string {
	return keyPrefix + productID
}

// Gateway stores snapshots as JSON. Store failures are logged and degrade to
// a miss on read and a no-op on write. A nil store disables caching.
type Gateway struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewGateway(store Store, ttl time.Duration, logger *slog.Logger) *Gateway {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gateway{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "cache"),
	}
}

func (g *Gateway) Enabled() bool {
	return g.store != nil
}

func (g *Gateway) TTL() time.Duration {
	return g.ttl
}

func (g *Gateway) Get(ctx context.Context, key string) (models.ProductSnapshot, bool) {
	if g.store == nil {
		return models.ProductSnapshot{}, false
	}

	data, err := g.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return models.ProductSnapshot{}, false
	}
	if err != nil {
		g.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return models.ProductSnapshot{}, false
	}

	var snapshot models.ProductSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		g.logger.Warn("undecodable cache entry", "key", key, "error", err)
		return models.ProductSnapshot{}, false
	}
	if err := snapshot.Validate(); err != nil {
		g.logger.Warn("invalid cache entry", "key", key, "error", err)
		return models.ProductSnapshot{}, false
	}

	return snapshot, true
}

func (g *Gateway) Set(ctx context.Context, key string, snapshot models.ProductSnapshot) {
	if g.store == nil {
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		g.logger.Warn("failed to encode snapshot", "key", key, "error", err)
		return
	}

	if err := g.store.Set(ctx, key, data, g.ttl); err != nil {
		g.logger.Warn("cache write failed, dropping", "key", key, "error", err)
	}
}

// Ping reports store health; a disabled gateway is not an error.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	return g.store.Ping(ctx)
}
