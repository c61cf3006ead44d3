package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/maltedev/pricehawk/internal/models"
)

// MinForecastObservations is the shortest series a price forecast accepts.
const MinForecastObservations = 7

var ErrProductNotFound = errors.New("tracked product not found")

type TrackedProduct struct {
	ID           string
	URL          string
	Name         string
	ImageURL     string
	Platform     models.Platform
	Currency     models.Currency
	CurrentPrice decimal.Decimal
	LowestPrice  decimal.Decimal
	HighestPrice decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PricePoint struct {
	ID        uuid.UUID       `json:"id"`
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Currency  models.Currency `json:"currency"`
	ScrapedAt time.Time       `json:"scraped_at"`
}

// ForecastReady reports whether the series is long enough to forecast from.
func ForecastReady(series []PricePoint) bool {
	return len(series) >= MinForecastObservations
}

type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// UpsertProductWithTx inserts the product or refreshes its details. The
// lowest and highest prices only ever widen.
func (r *HistoryRepository) UpsertProductWithTx(ctx context.Context, tx pgx.Tx, p *TrackedProduct) error {
	price := p.CurrentPrice.String()

	err := tx.QueryRow(ctx, `
		INSERT INTO tracked_products (
			id, url, name, image_url, platform, currency,
			current_price, lowest_price, highest_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $7::numeric, $7::numeric)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			name = EXCLUDED.name,
			image_url = EXCLUDED.image_url,
			platform = EXCLUDED.platform,
			currency = EXCLUDED.currency,
			current_price = EXCLUDED.current_price,
			lowest_price = LEAST(tracked_products.lowest_price, EXCLUDED.current_price),
			highest_price = GREATEST(tracked_products.highest_price, EXCLUDED.current_price),
			updated_at = NOW()
		RETURNING lowest_price::text, highest_price::text, created_at, updated_at`,
		p.ID, p.URL, p.Name, p.ImageURL, string(p.Platform), string(p.Currency), price,
	).Scan(newDecimalScanner(&p.LowestPrice), newDecimalScanner(&p.HighestPrice), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert tracked product: %w", err)
	}
	return nil
}

func (r *HistoryRepository) InsertPricePointWithTx(ctx context.Context, tx pgx.Tx, pt *PricePoint) error {
	if pt.ID == uuid.Nil {
		pt.ID = uuid.New()
	}
	if pt.ScrapedAt.IsZero() {
		pt.ScrapedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO price_points (id, product_id, price, currency, scraped_at)
		VALUES ($1, $2, $3::numeric, $4, $5)`,
		pt.ID, pt.ProductID, pt.Price.String(), string(pt.Currency), pt.ScrapedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price point: %w", err)
	}
	return nil
}

func (r *HistoryRepository) GetProduct(ctx context.Context, id string) (*TrackedProduct, error) {
	p := &TrackedProduct{}
	var platform, currency string

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, url, name, image_url, platform, currency,
			current_price::text, lowest_price::text, highest_price::text,
			created_at, updated_at
		FROM tracked_products
		WHERE id = $1`, id,
	).Scan(&p.ID, &p.URL, &p.Name, &p.ImageURL, &platform, &currency,
		newDecimalScanner(&p.CurrentPrice), newDecimalScanner(&p.LowestPrice), newDecimalScanner(&p.HighestPrice),
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked product: %w", err)
	}

	p.Platform = models.Platform(platform)
	p.Currency = models.Currency(currency)
	return p, nil
}

// PriceSeries returns the product's observations ordered by scrape time.
func (r *HistoryRepository) PriceSeries(ctx context.Context, productID string) ([]PricePoint, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, product_id, price::text, currency, scraped_at
		FROM price_points
		WHERE product_id = $1
		ORDER BY scraped_at ASC, id ASC`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price series: %w", err)
	}
	defer rows.Close()

	series := make([]PricePoint, 0)
	for rows.Next() {
		var pt PricePoint
		var currency string
		if err := rows.Scan(&pt.ID, &pt.ProductID, newDecimalScanner(&pt.Price), &currency, &pt.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		pt.Currency = models.Currency(currency)
		series = append(series, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return series, nil
}

// decimalScanner reads a NUMERIC column selected as text.
type decimalScanner struct {
	dst *decimal.Decimal
}

func newDecimalScanner(dst *decimal.Decimal) *decimalScanner {
	return &decimalScanner{dst: dst}
}

func (s *decimalScanner) Scan(src any) error {
	var text string
	switch v := src.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case nil:
		*s.dst = decimal.Zero
		return nil
	default:
		return fmt.Errorf("cannot scan %T into decimal", src)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return err
	}
	*s.dst = d
	return nil
}
