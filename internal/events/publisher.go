// Package events records price snapshots and announces them through the
// transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/pricehawk/internal/database"
	"github.com/maltedev/pricehawk/internal/models"
)

type EventType string

const EventTypePriceSnapshotRecorded EventType = "PRICE_SNAPSHOT_RECORDED"

const aggregateType = "tracked_product"

// PriceSnapshotRecordedPayload is the event body consumers receive on
// stream:price_snapshots.
type PriceSnapshotRecordedPayload struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	Timestamp    time.Time       `json:"timestamp"`
	ProductID    string          `json:"product_id"`
	URL          string          `json:"url"`
	Name         string          `json:"name"`
	Platform     models.Platform `json:"platform"`
	Price        string          `json:"price"`
	Currency     models.Currency `json:"currency"`
	ImageURL     string          `json:"image_url"`
	LowestPrice  string          `json:"lowest_price"`
	HighestPrice string          `json:"highest_price"`
	Source       string          `json:"source"`
}

type Transactor interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type HistoryWriter interface {
	UpsertProductWithTx(ctx context.Context, tx pgx.Tx, p *database.TrackedProduct) error
	InsertPricePointWithTx(ctx context.Context, tx pgx.Tx, pt *database.PricePoint) error
}

type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher writes the tracked product, the price point and the outbox event
// in one transaction, so an event exists exactly when the observation does.
type Publisher struct {
	tx      Transactor
	history HistoryWriter
	outbox  OutboxWriter
	now     func() time.Time
	logger  *slog.Logger
}

func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return newPublisher(db, database.NewHistoryRepository(db), database.NewOutboxRepository(db), logger)
}

func newPublisher(tx Transactor, history HistoryWriter, outbox OutboxWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		tx:      tx,
		history: history,
		outbox:  outbox,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("component", "event_publisher"),
	}
}

// RecordSnapshot stores one observation of productID and queues a
// PRICE_SNAPSHOT_RECORDED event for it.
func (p *Publisher) RecordSnapshot(ctx context.Context, productID, url string, snap models.ProductSnapshot) error {
	scrapedAt := p.now()
	payload := &PriceSnapshotRecordedPayload{
		EventID:   uuid.New().String(),
		EventType: string(EventTypePriceSnapshotRecorded),
		Timestamp: scrapedAt,
		ProductID: productID,
		URL:       url,
		Name:      snap.Name,
		Platform:  snap.Platform,
		Price:     snap.Price.String(),
		Currency:  snap.Currency,
		ImageURL:  snap.ImageURL,
		Source:    database.EventSource,
	}

	var event *database.OutboxEvent
	err := p.tx.Transaction(ctx, func(tx pgx.Tx) error {
		product := &database.TrackedProduct{
			ID:           productID,
			URL:          url,
			Name:         snap.Name,
			ImageURL:     snap.ImageURL,
			Platform:     snap.Platform,
			Currency:     snap.Currency,
			CurrentPrice: snap.Price,
		}
		if err := p.history.UpsertProductWithTx(ctx, tx, product); err != nil {
			return err
		}

		point := &database.PricePoint{
			ProductID: productID,
			Price:     snap.Price,
			Currency:  snap.Currency,
			ScrapedAt: scrapedAt,
		}
		if err := p.history.InsertPricePointWithTx(ctx, tx, point); err != nil {
			return err
		}

		payload.LowestPrice = product.LowestPrice.String()
		payload.HighestPrice = product.HighestPrice.String()
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		event = &database.OutboxEvent{
			AggregateType: aggregateType,
			AggregateID:   productID,
			EventType:     string(EventTypePriceSnapshotRecorded),
			Payload:       data,
			TargetStream:  database.PriceSnapshotStream,
		}
		return p.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}

	p.logger.Info("snapshot recorded",
		"product_id", productID,
		"event_id", payload.EventID,
		"outbox_id", event.ID,
		"price", payload.Price,
		"currency", payload.Currency,
	)
	return nil
}
