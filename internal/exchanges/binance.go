package exchanges

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

const binanceBaseURL = "https://api.binance.com"

// Binance is the foreign venue; all pairs are quoted in USDT.
type Binance struct {
	fetcher *httpclient.Fetcher
	baseURL string
}

// NewBinance creates the Binance adapter. baseURL overrides the public
// endpoint for tests; empty means production.
func NewBinance(fetcher *httpclient.Fetcher, baseURL string) *Binance {
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	return &Binance{fetcher: fetcher, baseURL: baseURL}
}

func (b *Binance) Name() string { return models.ExchangeBinance }

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// ListSymbols keeps TRADING pairs quoted in USDT and returns their base
// assets.
func (b *Binance) ListSymbols(ctx context.Context) ([]Listing, error) {
	var info binanceExchangeInfo
	if err := b.fetcher.GetJSON(ctx, b.Name(), b.baseURL+"/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	var listings []Listing
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.QuoteAsset != "USDT" {
			continue
		}
		listings = append(listings, Listing{
			Base:         strings.ToUpper(s.BaseAsset),
			MarketSymbol: s.Symbol,
			Quote:        "USDT",
		})
	}

	return listings, nil
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// FetchTickers pulls the full 24hr ticker set and keeps USDT pairs.
func (b *Binance) FetchTickers(ctx context.Context, _ []string) ([]Ticker, error) {
	var raw []binanceTicker
	if err := b.fetcher.GetJSON(ctx, b.Name(), b.baseURL+"/api/v3/ticker/24hr", nil, &raw); err != nil {
		return nil, err
	}

	var tickers []Ticker
	for _, t := range raw {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		base := strings.TrimSuffix(t.Symbol, "USDT")

		price, err := decimal.NewFromString(t.LastPrice)
		if err != nil || price.IsNegative() {
			log.Debug().Str("symbol", t.Symbol).Str("last_price", t.LastPrice).Msg("Dropping Binance ticker with unusable price")
			continue
		}

		tickers = append(tickers, Ticker{
			Base:      base,
			Price:     price,
			Volume24h: parseNullDecimal(t.Volume),
			Change24h: parseNullDecimal(t.PriceChangePercent),
		})
	}

	return tickers, nil
}

// parseNullDecimal parses an optional decimal string; invalid or empty
// input yields a null.
func parseNullDecimal(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
