// Package api exposes the tracker and the price history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/maltedev/pricehawk/internal/browser"
	"github.com/maltedev/pricehawk/internal/database"
	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/parser"
	"github.com/maltedev/pricehawk/internal/scraper"
	"github.com/maltedev/pricehawk/internal/tracker"
)

const (
	AppName    = "PriceHawk API"
	AppVersion = "1.0.0"
)

type Tracker interface {
	Track(ctx context.Context, url, productID string) (tracker.Result, error)
}

type HistoryReader interface {
	GetProduct(ctx context.Context, id string) (*database.TrackedProduct, error)
	PriceSeries(ctx context.Context, productID string) ([]database.PricePoint, error)
}

type Handlers struct {
	tracker Tracker
	history HistoryReader
	health  HealthDeps
	logger  *slog.Logger
}

// NewHandlers wires the handlers. history may be nil when no database is
// configured.
func NewHandlers(t Tracker, history HistoryReader, health HealthDeps, logger *slog.Logger) *Handlers {
	return &Handlers{
		tracker: t,
		history: history,
		health:  health,
		logger:  logger.With("component", "api"),
	}
}

type ScrapeRequest struct {
	URL       string `json:"url"`
	ProductID string `json:"product_id"`
}

// Scrape returns the snapshot for a product URL, from cache when possible.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		h.respondError(w, http.StatusBadRequest, "url must be an absolute http(s) url")
		return
	}

	res, err := h.tracker.Track(r.Context(), req.URL, strings.TrimSpace(req.ProductID))
	if err != nil {
		status := statusForError(err)
		h.logger.Error("scrape failed", "url", req.URL, "status", status, "error", err)
		h.respondError(w, status, err.Error())
		return
	}

	cacheStatus := "MISS"
	if res.Cached {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("X-Product-ID", res.ProductID)
	h.respondJSON(w, http.StatusOK, res.Snapshot)
}

// statusForError maps the extraction error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var (
		unsupported *scraper.UnsupportedPlatformError
		navigation  *browser.NavigationError
		notFound    *extract.FieldNotFoundError
		parseErr    *parser.ParseError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.As(err, &navigation):
		return http.StatusBadGateway
	case errors.As(err, &notFound), errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type PricePointResponse struct {
	Price     json.Number     `json:"price"`
	Currency  models.Currency `json:"currency"`
	ScrapedAt string          `json:"scraped_at"`
}

type HistoryResponse struct {
	ProductID       string               `json:"product_id"`
	Name            string               `json:"name"`
	Platform        models.Platform      `json:"platform"`
	URL             string               `json:"url"`
	ImageURL        string               `json:"image_url"`
	CurrentPrice    json.Number          `json:"current_price"`
	LowestPrice     json.Number          `json:"lowest_price"`
	HighestPrice    json.Number          `json:"highest_price"`
	Points          []PricePointResponse `json:"points"`
	Count           int                  `json:"count"`
	ForecastReady   bool                 `json:"forecast_ready"`
	MinObservations int                  `json:"min_observations"`
}

// History returns the ordered price series of a tracked product.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusServiceUnavailable, "price history is not enabled")
		return
	}

	productID := chi.URLParam(r, "productID")
	product, err := h.history.GetProduct(r.Context(), productID)
	if errors.Is(err, database.ErrProductNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load product", "product_id", productID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	series, err := h.history.PriceSeries(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to load price series", "product_id", productID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}

	points := make([]PricePointResponse, 0, len(series))
	for _, pt := range series {
		points = append(points, PricePointResponse{
			Price:     number(pt.Price),
			Currency:  pt.Currency,
			ScrapedAt: pt.ScrapedAt.UTC().Format(time.RFC3339),
		})
	}

	h.respondJSON(w, http.StatusOK, HistoryResponse{
		ProductID:       product.ID,
		Name:            product.Name,
		Platform:        product.Platform,
		URL:             product.URL,
		ImageURL:        product.ImageURL,
		CurrentPrice:    number(product.CurrentPrice),
		LowestPrice:     number(product.LowestPrice),
		HighestPrice:    number(product.HighestPrice),
		Points:          points,
		Count:           len(points),
		ForecastReady:   database.ForecastReady(series),
		MinObservations: database.MinForecastObservations,
	})
}

type PredictRequest struct {
	ProductID    string            `json:"product_id"`
	PriceHistory []json.RawMessage `json:"price_history"`
}

// Predict checks whether enough history exists for a forecast. The forecast
// model itself is not served here.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count := len(req.PriceHistory)
	if req.ProductID != "" && h.history != nil {
		series, err := h.history.PriceSeries(r.Context(), req.ProductID)
		if err != nil {
			h.logger.Error("failed to load price series", "product_id", req.ProductID, "error", err)
			h.respondError(w, http.StatusInternalServerError, "failed to load price history")
			return
		}
		count = len(series)
	}

	if count < database.MinForecastObservations {
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"error":         "Need at least 7 days of history for prediction",
			"current_count": count,
		})
		return
	}

	h.respondJSON(w, http.StatusNotImplemented, map[string]string{
		"error":   "ML model not yet trained",
		"message": "Please train the model first",
	})
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"app":     AppName,
		"version": AppVersion,
		"status":  "running",
	})
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
