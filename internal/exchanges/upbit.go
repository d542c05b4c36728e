package exchanges

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

const upbitBaseURL = "https://api.upbit.com"

// Upbit is a domestic venue; only KRW markets are ingested.
type Upbit struct {
	fetcher *httpclient.Fetcher
	baseURL string
}

// NewUpbit creates the Upbit adapter. baseURL overrides the public
// endpoint for tests; empty means production.
func NewUpbit(fetcher *httpclient.Fetcher, baseURL string) *Upbit {
	if baseURL == "" {
		baseURL = upbitBaseURL
	}
	return &Upbit{fetcher: fetcher, baseURL: baseURL}
}

func (u *Upbit) Name() string { return models.ExchangeUpbit }

type upbitMarket struct {
	Market string `json:"market"`
}

// ListSymbols keeps markets with the KRW- prefix; the suffix is the
// coin symbol.
func (u *Upbit) ListSymbols(ctx context.Context) ([]Listing, error) {
	var markets []upbitMarket
	if err := u.fetcher.GetJSON(ctx, u.Name(), u.baseURL+"/v1/market/all", nil, &markets); err != nil {
		return nil, err
	}

	var listings []Listing
	for _, m := range markets {
		if !strings.HasPrefix(m.Market, "KRW-") {
			continue
		}
		listings = append(listings, Listing{
			Base:         strings.ToUpper(strings.TrimPrefix(m.Market, "KRW-")),
			MarketSymbol: m.Market,
			Quote:        "KRW",
		})
	}

	return listings, nil
}

type upbitTicker struct {
	Market           string  `json:"market"`
	TradePrice       float64 `json:"trade_price"`
	AccTradeVolume   float64 `json:"acc_trade_volume_24h"`
	SignedChangeRate float64 `json:"signed_change_rate"`
}

// FetchTickers issues one batched ticker call for the listed symbols.
// Upstream floats are widened to decimal immediately after decoding.
func (u *Upbit) FetchTickers(ctx context.Context, symbols []string) ([]Ticker, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	markets := make([]string, 0, len(symbols))
	for _, s := range symbols {
		markets = append(markets, "KRW-"+s)
	}

	url := u.baseURL + "/v1/ticker?markets=" + strings.Join(markets, ",")

	var raw []upbitTicker
	if err := u.fetcher.GetJSON(ctx, u.Name(), url, nil, &raw); err != nil {
		return nil, err
	}

	var tickers []Ticker
	for _, t := range raw {
		price := decimal.NewFromFloat(t.TradePrice)
		if price.IsNegative() {
			continue
		}
		tickers = append(tickers, Ticker{
			Base:      strings.TrimPrefix(t.Market, "KRW-"),
			Price:     price,
			Volume24h: decimal.NullDecimal{Decimal: decimal.NewFromFloat(t.AccTradeVolume), Valid: true},
			Change24h: decimal.NullDecimal{Decimal: decimal.NewFromFloat(t.SignedChangeRate * 100), Valid: true},
		})
	}

	return tickers, nil
}
