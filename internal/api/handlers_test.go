package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricehawk/internal/browser"
	"github.com/maltedev/pricehawk/internal/database"
	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/parser"
	"github.com/maltedev/pricehawk/internal/scraper"
	"github.com/maltedev/pricehawk/internal/tracker"
)

type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) Track(ctx context.Context, url, productID string) (tracker.Result, error) {
	args := m.Called(ctx, url, productID)
	return args.Get(0).(tracker.Result), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) GetProduct(ctx context.Context, id string) (*database.TrackedProduct, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.TrackedProduct), args.Error(1)
}

func (m *MockHistory) PriceSeries(ctx context.Context, productID string) ([]database.PricePoint, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.PricePoint), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubBrowser struct{ healthy bool }

func (b stubBrowser) Healthy() bool { return b.healthy }

type stubOutbox struct {
	stats database.OutboxStats
	err   error
}

func (o stubOutbox) Stats(context.Context) (database.OutboxStats, error) { return o.stats, o.err }

func newTestRouter(t Tracker, history HistoryReader, health HealthDeps) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandlers(t, history, health, logger), RouterConfig{})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func snapshot(t *testing.T) models.ProductSnapshot {
	t.Helper()
	snap, err := models.NewProductSnapshot("Acme Mug", decimal.RequireFromString("14.99"), models.CurrencyUSD, "", models.PlatformAmazon)
	require.NoError(t, err)
	return snap
}

func TestScrape_Success(t *testing.T) {
	tr := new(MockTracker)
	tr.On("Track", mock.Anything, "https://www.amazon.com/dp/X", "p1").
		Return(tracker.Result{ProductID: "p1", Snapshot: snapshot(t), Cached: true}, nil)
	router := newTestRouter(tr, nil, HealthDeps{})

	for _, path := range []string{"/scrape", "/api/v1/scrape"} {
		rec := do(t, router, http.MethodPost, path, `{"url":"https://www.amazon.com/dp/X","product_id":"p1"}`)

		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.Equal(t, "p1", rec.Header().Get("X-Product-ID"))
		body := decode(t, rec)
		assert.Equal(t, "Acme Mug", body["name"])
		assert.Equal(t, 14.99, body["price"])
		assert.Equal(t, "USD", body["currency"])
		assert.Equal(t, models.PlaceholderImageURL, body["image_url"])
		assert.Equal(t, "Amazon", body["platform"])
	}
}

func TestScrape_BadRequests(t *testing.T) {
	router := newTestRouter(new(MockTracker), nil, HealthDeps{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{"product_id":"p1"}`},
		{"relative url", `{"url":"/dp/X"}`},
		{"non http scheme", `{"url":"ftp://amazon.com/x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/scrape", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestScrape_ErrorMapping(t *testing.T) {
	wrap := func(err error) error {
		return &scraper.ExtractionError{Platform: models.PlatformAmazon, URL: "https://www.amazon.com/dp/X", Err: err}
	}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported", &scraper.UnsupportedPlatformError{URL: "https://www.amazon.com/dp/X"}, http.StatusBadRequest},
		{"navigation", wrap(&browser.NavigationError{URL: "u", Err: errors.New("timeout")}), http.StatusBadGateway},
		{"field not found", wrap(&extract.FieldNotFoundError{Field: extract.FieldPrice}), http.StatusUnprocessableEntity},
		{"parse", wrap(&parser.ParseError{Raw: "N/A"}), http.StatusUnprocessableEntity},
		{"deadline", wrap(fmt.Errorf("settle: %w", context.DeadlineExceeded)), http.StatusGatewayTimeout},
		{"other", wrap(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTracker)
			tr.On("Track", mock.Anything, mock.Anything, mock.Anything).Return(tracker.Result{}, tt.err)
			router := newTestRouter(tr, nil, HealthDeps{})

			rec := do(t, router, http.MethodPost, "/scrape", `{"url":"https://www.amazon.com/dp/X"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err.Error(), decode(t, rec)["error"])
		})
	}
}

func TestHistory(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	product := &database.TrackedProduct{
		ID:           "p1",
		Name:         "Acme Mug",
		Platform:     models.PlatformAmazon,
		URL:          "https://www.amazon.com/dp/X",
		ImageURL:     models.PlaceholderImageURL,
		CurrentPrice: decimal.RequireFromString("14.99"),
		LowestPrice:  decimal.RequireFromString("12.00"),
		HighestPrice: decimal.RequireFromString("19.50"),
	}
	series := []database.PricePoint{
		{ProductID: "p1", Price: decimal.RequireFromString("19.50"), Currency: models.CurrencyUSD, ScrapedAt: base},
		{ProductID: "p1", Price: decimal.RequireFromString("12.00"), Currency: models.CurrencyUSD, ScrapedAt: base.Add(24 * time.Hour)},
	}

	history := new(MockHistory)
	history.On("GetProduct", mock.Anything, "p1").Return(product, nil)
	history.On("PriceSeries", mock.Anything, "p1").Return(series, nil)
	history.On("GetProduct", mock.Anything, "missing").Return(nil, database.ErrProductNotFound)
	router := newTestRouter(new(MockTracker), history, HealthDeps{})

	rec := do(t, router, http.MethodGet, "/api/v1/products/p1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.ProductID)
	assert.Equal(t, 2, resp.Count)
	assert.False(t, resp.ForecastReady)
	assert.Equal(t, 7, resp.MinObservations)
	assert.Equal(t, json.Number("12"), resp.LowestPrice)
	require.Len(t, resp.Points, 2)
	assert.Equal(t, "2026-04-01T00:00:00Z", resp.Points[0].ScrapedAt)

	rec = do(t, router, http.MethodGet, "/api/v1/products/missing/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory_Disabled(t *testing.T) {
	router := newTestRouter(new(MockTracker), nil, HealthDeps{})

	rec := do(t, router, http.MethodGet, "/api/v1/products/p1/history", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPredict(t *testing.T) {
	router := newTestRouter(new(MockTracker), nil, HealthDeps{})

	rec := do(t, router, http.MethodPost, "/predict", `{"price_history":[{"price":1},{"price":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Need at least 7 days of history for prediction", body["error"])
	assert.Equal(t, float64(2), body["current_count"])

	week := `{"price_history":[{},{},{},{},{},{},{}]}`
	rec = do(t, router, http.MethodPost, "/predict", week)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPredict_UsesStoredSeries(t *testing.T) {
	history := new(MockHistory)
	history.On("PriceSeries", mock.Anything, "p1").Return(make([]database.PricePoint, 7), nil)
	router := newTestRouter(new(MockTracker), history, HealthDeps{})

	rec := do(t, router, http.MethodPost, "/api/v1/predict", `{"product_id":"p1"}`)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	history.AssertExpectations(t)
}

func TestRoot(t *testing.T) {
	rec := do(t, newTestRouter(new(MockTracker), nil, HealthDeps{}), http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PriceHawk API", body["app"])
	assert.Equal(t, "running", body["status"])
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		deps       HealthDeps
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name:       "everything disabled",
			deps:       HealthDeps{Mode: "mock"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "disabled", body["redis"])
				assert.Equal(t, "disabled", body["database"])
				assert.Equal(t, "disabled", body["browser"])
				assert.Equal(t, "mock", body["mode"])
			},
		},
		{
			name: "redis down is reported, not fatal",
			deps: HealthDeps{
				Cache:   stubPinger{err: errors.New("refused")},
				Browser: stubBrowser{healthy: true},
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "ok", body["status"])
				assert.Equal(t, "disconnected", body["redis"])
				assert.Equal(t, "healthy", body["browser"])
			},
		},
		{
			name:       "browser gone",
			deps:       HealthDeps{Cache: stubPinger{}, Browser: stubBrowser{healthy: false}},
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "connected", body["redis"])
				assert.Equal(t, "error", body["status"])
			},
		},
		{
			name:       "dead letters pile up",
			deps:       HealthDeps{Database: stubPinger{}, Outbox: stubOutbox{stats: database.OutboxStats{Pending: 2, DeadLetter: 101}}},
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "connected", body["database"])
				outbox := body["outbox"].(map[string]interface{})
				assert.Equal(t, float64(101), outbox["dead_letter"])
			},
		},
		{
			name:       "pending backlog warns",
			deps:       HealthDeps{Outbox: stubOutbox{stats: database.OutboxStats{Pending: 1001}}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "warning", body["status"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(new(MockTracker), nil, tt.deps), http.MethodGet, "/health", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			tt.check(t, decode(t, rec))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(new(MockTracker), nil, HealthDeps{})
	req := httptest.NewRequest(http.MethodOptions, "/scrape", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
