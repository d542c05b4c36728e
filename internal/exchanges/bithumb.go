package exchanges

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

const bithumbBaseURL = "https://api.bithumb.com"

// Bithumb is a domestic venue. Both the catalog and the tickers come
// from the single ALL_KRW endpoint, avoiding a per-symbol fan-out.
type Bithumb struct {
	fetcher *httpclient.Fetcher
	baseURL string
}

// NewBithumb creates the Bithumb adapter. baseURL overrides the public
// endpoint for tests; empty means production.
func NewBithumb(fetcher *httpclient.Fetcher, baseURL string) *Bithumb {
	if baseURL == "" {
		baseURL = bithumbBaseURL
	}
	return &Bithumb{fetcher: fetcher, baseURL: baseURL}
}

func (b *Bithumb) Name() string { return models.ExchangeBithumb }

type bithumbAllResponse struct {
	Status string                     `json:"status"`
	Data   map[string]json.RawMessage `json:"data"`
}

// bithumbTicker carries the per-symbol object of the ALL_KRW payload.
// Upstream alternates between _24H and _24h key casing across records;
// encoding/json's case-insensitive field match accepts both.
type bithumbTicker struct {
	ClosingPrice   string `json:"closing_price"`
	UnitsTraded24h string `json:"units_traded_24h"`
	FluctateRate24 string `json:"fluctate_rate_24h"`
}

func (b *Bithumb) fetchAll(ctx context.Context) (map[string]json.RawMessage, error) {
	var resp bithumbAllResponse
	if err := b.fetcher.GetJSON(ctx, b.Name(), b.baseURL+"/public/ticker/ALL_KRW", nil, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "0000" {
		return nil, &models.TransportError{
			URL: b.baseURL + "/public/ticker/ALL_KRW",
			Err: fmt.Errorf("bithumb status %q", resp.Status),
		}
	}

	return resp.Data, nil
}

// ListSymbols treats the data object's keys as symbols, skipping the
// "date" scalar and anything that is not a nested object.
func (b *Bithumb) ListSymbols(ctx context.Context) ([]Listing, error) {
	data, err := b.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	var listings []Listing
	for key, raw := range data {
		if key == "date" || !isJSONObject(raw) {
			continue
		}
		symbol := strings.ToUpper(key)
		listings = append(listings, Listing{
			Base:         symbol,
			MarketSymbol: symbol + "_KRW",
			Quote:        "KRW",
		})
	}

	return listings, nil
}

// FetchTickers reuses the ALL_KRW payload. A record without a
// closing_price is dropped silently.
func (b *Bithumb) FetchTickers(ctx context.Context, _ []string) ([]Ticker, error) {
	data, err := b.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	var tickers []Ticker
	for key, raw := range data {
		if key == "date" || !isJSONObject(raw) {
			continue
		}

		var t bithumbTicker
		if err := json.Unmarshal(raw, &t); err != nil {
			log.Debug().Str("symbol", key).Err(err).Msg("Skipping malformed Bithumb record")
			continue
		}
		if t.ClosingPrice == "" {
			continue
		}

		price, err := decimal.NewFromString(strings.ReplaceAll(t.ClosingPrice, ",", ""))
		if err != nil || price.IsNegative() {
			continue
		}

		tickers = append(tickers, Ticker{
			Base:      strings.ToUpper(key),
			Price:     price,
			Volume24h: parseNullDecimal(strings.ReplaceAll(t.UnitsTraded24h, ",", "")),
			Change24h: parseNullDecimal(strings.ReplaceAll(t.FluctateRate24, ",", "")),
		})
	}

	return tickers, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}
