package exchanges

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

func newTestFetcher() *httpclient.Fetcher {
	return httpclient.New(5 * time.Second)
}

func TestBinanceListSymbolsKeepsTradingUSDTPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"},
			{"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","quoteAsset":"BTC"},
			{"symbol":"LUNAUSDT","status":"BREAK","baseAsset":"LUNA","quoteAsset":"USDT"}
		]}`))
	}))
	defer srv.Close()

	adapter := NewBinance(newTestFetcher(), srv.URL)

	listings, err := adapter.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, Listing{Base: "BTC", MarketSymbol: "BTCUSDT", Quote: "USDT"}, listings[0])
}

func TestBinanceFetchTickersDropsBadPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"60000.00","volume":"1234.5","priceChangePercent":"1.2"},
			{"symbol":"ETHBTC","lastPrice":"0.05","volume":"10","priceChangePercent":"0"},
			{"symbol":"XRPUSDT","lastPrice":"not-a-number","volume":"1","priceChangePercent":"0"},
			{"symbol":"DOGEUSDT","lastPrice":"-1","volume":"1","priceChangePercent":"0"}
		]`))
	}))
	defer srv.Close()

	adapter := NewBinance(newTestFetcher(), srv.URL)

	tickers, err := adapter.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tickers, 1)

	assert.Equal(t, "BTC", tickers[0].Base)
	assert.True(t, tickers[0].Price.Equal(decimal.RequireFromString("60000.00")))
	assert.True(t, tickers[0].Volume24h.Valid)
}

func TestUpbitListSymbolsKeepsKRWMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/market/all", r.URL.Path)
		w.Write([]byte(`[
			{"market":"KRW-BTC"},
			{"market":"BTC-ETH"},
			{"market":"KRW-XRP"}
		]`))
	}))
	defer srv.Close()

	adapter := NewUpbit(newTestFetcher(), srv.URL)

	listings, err := adapter.ListSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, Listing{Base: "BTC", MarketSymbol: "KRW-BTC", Quote: "KRW"}, listings[0])
	assert.Equal(t, Listing{Base: "XRP", MarketSymbol: "KRW-XRP", Quote: "KRW"}, listings[1])
}

func TestUpbitFetchTickersBatchesMarketsAndWidensFloats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/ticker", r.URL.Path)
		require.Equal(t, "KRW-BTC", r.URL.Query().Get("markets"))
		w.Write([]byte(`[
			{"market":"KRW-BTC","trade_price":83200000,"acc_trade_volume_24h":512.25,"signed_change_rate":0.012}
		]`))
	}))
	defer srv.Close()

	adapter := NewUpbit(newTestFetcher(), srv.URL)

	tickers, err := adapter.FetchTickers(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	require.Len(t, tickers, 1)

	assert.Equal(t, "BTC", tickers[0].Base)
	assert.True(t, tickers[0].Price.Equal(decimal.NewFromInt(83200000)))
	assert.True(t, tickers[0].Change24h.Decimal.Equal(decimal.NewFromFloat(1.2)))
}

func TestUpbitFetchTickersNoSymbols(t *testing.T) {
	adapter := NewUpbit(newTestFetcher(), "http://127.0.0.1:1")

	tickers, err := adapter.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, tickers)
}

func TestBithumbParsesAllKRWWithMixedFieldCasing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/public/ticker/ALL_KRW", r.URL.Path)
		w.Write([]byte(`{"status":"0000","data":{
			"BTC":{"closing_price":"83,200,000","units_traded_24H":"512.25","fluctate_rate_24H":"1.2"},
			"ETH":{"closing_price":"5025000","units_traded_24h":"9000","fluctate_rate_24h":"-0.4"},
			"XRP":{"units_traded_24H":"100"},
			"date":"1724480000000"
		}}`))
	}))
	defer srv.Close()

	adapter := NewBithumb(newTestFetcher(), srv.URL)

	listings, err := adapter.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Len(t, listings, 3)

	tickers, err := adapter.FetchTickers(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, tickers, 2)

	byBase := map[string]Ticker{}
	for _, tk := range tickers {
		byBase[tk.Base] = tk
	}

	btc, ok := byBase["BTC"]
	require.True(t, ok)
	assert.True(t, btc.Price.Equal(decimal.NewFromInt(83200000)))
	assert.True(t, btc.Volume24h.Valid)
	assert.True(t, btc.Volume24h.Decimal.Equal(decimal.RequireFromString("512.25")))

	eth, ok := byBase["ETH"]
	require.True(t, ok)
	assert.True(t, eth.Change24h.Decimal.Equal(decimal.RequireFromString("-0.4")))
}

func TestBithumbRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"5500","data":{}}`))
	}))
	defer srv.Close()

	adapter := NewBithumb(newTestFetcher(), srv.URL)

	_, err := adapter.ListSymbols(context.Background())
	require.Error(t, err)

	var transportErr *models.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestRegistryLookupAndOrder(t *testing.T) {
	binance := NewBinance(newTestFetcher(), "")
	upbit := NewUpbit(newTestFetcher(), "")

	reg := NewRegistry(binance, upbit)

	got, ok := reg.Get(models.ExchangeUpbit)
	require.True(t, ok)
	assert.Equal(t, upbit, got)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, models.ExchangeBinance, all[0].Name())
}
