package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimchiscan/kimchiscan/internal/arbitrage"
	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

type fakePriceStore struct {
	bySymbol map[string][]models.ExchangePrice
}

func (f *fakePriceStore) UpsertPrice(context.Context, models.NewPriceData) error { return nil }

func (f *fakePriceStore) LatestPriceVolumePerExchange(_ context.Context, symbol string) ([]models.ExchangePrice, error) {
	return f.bySymbol[symbol], nil
}

func (f *fakePriceStore) LatestPrices(_ context.Context, symbol string, _ int) ([]models.ExchangePrice, error) {
	return f.bySymbol[symbol], nil
}

type fakeListingStore struct {
	common []string
}

func (f *fakeListingStore) UpsertListing(context.Context, int64, int64, string, string, string) error {
	return nil
}

func (f *fakeListingStore) DeactivateListingsExcept(context.Context, int64, []string) (int64, error) {
	return 0, nil
}

func (f *fakeListingStore) ActiveListedCoinIDs(context.Context, int64) (map[string]int64, error) {
	return nil, nil
}

func (f *fakeListingStore) CountActiveListings(context.Context, int64) (int, error) { return 0, nil }

func (f *fakeListingStore) CommonSymbols(context.Context, string, string, int) ([]string, error) {
	return f.common, nil
}

type fakeKimchiStore struct {
	points []models.KimchiHistoryPoint
}

func (f *fakeKimchiStore) InsertKimchi(_ context.Context, p models.KimchiHistoryPoint) error {
	f.points = append(f.points, p)
	return nil
}

func (f *fakeKimchiStore) QueryKimchi(context.Context, string, string, string, int) ([]models.KimchiHistoryPoint, error) {
	return f.points, nil
}

type fakeFxStore struct {
	row *models.FxRate
}

func (f *fakeFxStore) InsertFxRate(context.Context, string, decimal.Decimal, decimal.NullDecimal, decimal.NullDecimal) error {
	return nil
}

func (f *fakeFxStore) LatestFxRate(context.Context, string) (*models.FxRate, error) {
	if f.row == nil {
		return nil, models.ErrNotFound
	}
	return f.row, nil
}

type fixedFx struct{ rate decimal.Decimal }

func (f fixedFx) GetLatestUsdKrwRate(context.Context) decimal.Decimal { return f.rate }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestRouter(t *testing.T, prices *fakePriceStore, fxRow *models.FxRate, pinger Pinger) http.Handler {
	t.Helper()

	listings := &fakeListingStore{common: []string{"BTC"}}
	kimchi := &fakeKimchiStore{}
	calc := arbitrage.NewCalculator(prices, listings, kimchi, fixedFx{rate: decimal.NewFromInt(1300)})

	repo := &persistence.Repository{
		Prices: prices,
		Fx:     &fakeFxStore{row: fxRow},
		Kimchi: kimchi,
	}

	handlers := NewHandlers(calc, nil, repo, nil, nil, nil, pinger)
	return NewServer(DefaultServerConfig("127.0.0.1:0"), handlers).Router()
}

func doRequest(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func btcPrices() *fakePriceStore {
	ts := time.Now().UTC()
	return &fakePriceStore{bySymbol: map[string][]models.ExchangePrice{
		"BTC": {
			{Exchange: models.ExchangeBinance, Price: decimal.RequireFromString("60000"), Timestamp: ts},
			{Exchange: models.ExchangeUpbit, Price: decimal.RequireFromString("83200000"), Timestamp: ts},
		},
	}}
}

func TestArbitrageSymbolRoute(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/arbitrage/btc?from=binance&to=upbit&fx=usdkrw&fees=exclude")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var arb models.DirectionalArbitrage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &arb))
	assert.Equal(t, "BTC", arb.Symbol)
	assert.True(t, arb.FromPriceKrw.Equal(decimal.NewFromInt(78000000)))
	assert.Equal(t, models.FxUsdKrw, arb.FxType)
}

func TestArbitrageSymbolMissingSideIs404(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/arbitrage/ETH?from=binance&to=upbit")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArbitrageListUnknownExchangeIs400(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/arbitrage?from=kraken&to=upbit")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArbitrageListDefaultsAndSort(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/arbitrage?from=BINANCE&to=Upbit")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.DirectionalArbitrage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].TotalFees.IsZero(), "list reads default to fees=exclude")
	assert.Equal(t, models.FxUsdKrw, results[0].FxType)
}

func TestExchangeRateServesStoredRow(t *testing.T) {
	row := &models.FxRate{
		CurrencyCode: "USD",
		Rate:         decimal.RequireFromString("1388.50"),
		CreatedAt:    time.Now().UTC(),
	}
	router := newTestRouter(t, btcPrices(), row, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/exchange-rate")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CurrencyPair string `json:"currency_pair"`
		Rate         string `json:"rate"`
		Note         string `json:"note"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "USD/KRW", resp.CurrencyPair)
	assert.Equal(t, "1388.5", resp.Rate)
	assert.Empty(t, resp.Note)
}

func TestFeesRoute(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/fees/BTC/1000")
	require.Equal(t, http.StatusOK, rec.Code)

	var fees models.FeeBreakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fees))
	assert.True(t, fees.TotalFee.Equal(decimal.RequireFromString("1.5005")))
}

func TestFeesRouteRejectsBadAmount(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/fees/BTC/banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricesRouteUnknownSymbolIs404(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/prices/DOGE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthReflectsDatabase(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})
	rec := doRequest(router, "GET", "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	router = newTestRouter(t, btcPrices(), nil, fakePinger{err: context.DeadlineExceeded})
	rec = doRequest(router, "GET", "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	router := newTestRouter(t, btcPrices(), nil, fakePinger{})

	rec := doRequest(router, "GET", "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
