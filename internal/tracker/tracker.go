// Package tracker serves snapshot requests: it consults the cache, extracts
// on a miss, repopulates the cache and records the observation.
package tracker

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"

	"github.com/maltedev/pricehawk/internal/cache"
	"github.com/maltedev/pricehawk/internal/models"
)

// productIDLength matches the length of the ids the web front end sends.
const productIDLength = 20

type Extractor interface {
	Extract(ctx context.Context, url string) (models.ProductSnapshot, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, key string) (models.ProductSnapshot, bool)
	Set(ctx context.Context, key string, snapshot models.ProductSnapshot)
}

// Recorder persists a fresh observation. Failures are logged by the tracker
// and never fail the request.
type Recorder interface {
	RecordSnapshot(ctx context.Context, productID, url string, snap models.ProductSnapshot) error
}

type Result struct {
	ProductID string
	Snapshot  models.ProductSnapshot
	Cached    bool
}

type Tracker struct {
	extractor Extractor
	cache     SnapshotCache
	recorder  Recorder
	logger    *slog.Logger
}

// New builds a tracker. recorder may be nil when no database is configured.
func New(extractor Extractor, cache SnapshotCache, recorder Recorder, logger *slog.Logger) *Tracker {
	return &Tracker{
		extractor: extractor,
		cache:     cache,
		recorder:  recorder,
		logger:    logger.With("component", "tracker"),
	}
}

// ProductID derives a stable id from the URL when the caller has none. The
// id covers the whole URL and is safe to use as a path segment.
func ProductID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:productIDLength]
}

// Track returns the cached snapshot for productID when there is one and
// extracts otherwise. Concurrent misses for the same product each extract.
func (t *Tracker) Track(ctx context.Context, url, productID string) (Result, error) {
	if productID == "" {
		productID = ProductID(url)
	}
	key := cache.Key(productID)

	if snap, ok := t.cache.Get(ctx, key); ok {
		t.logger.Debug("cache hit", "product_id", productID)
		return Result{ProductID: productID, Snapshot: snap, Cached: true}, nil
	}

	snap, err := t.extractor.Extract(ctx, url)
	if err != nil {
		return Result{}, err
	}

	t.cache.Set(ctx, key, snap)

	if t.recorder != nil {
		if err := t.recorder.RecordSnapshot(ctx, productID, url, snap); err != nil {
			t.logger.Warn("failed to record snapshot", "product_id", productID, "error", err)
		}
	}

	return Result{ProductID: productID, Snapshot: snap}, nil
}
