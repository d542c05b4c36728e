package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coin is a currency known to the system. Coins are created on first
// appearance in any venue's listing and never deleted.
type Coin struct {
	ID       int64  `json:"id" db:"id"`
	Symbol   string `json:"symbol" db:"symbol"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Exchange is a trading venue. The exchanges table is seeded and
// immutable at runtime.
type Exchange struct {
	ID         int64  `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	Country    string `json:"country" db:"country"`
	APIBaseURL string `json:"api_base_url" db:"api_base_url"`
}

// Canonical exchange names. Everything user-facing is normalized to one
// of these before hitting the store.
const (
	ExchangeBinance = "Binance"
	ExchangeUpbit   = "Upbit"
	ExchangeBithumb = "Bithumb"
)

// CoinListing records that a venue currently trades a coin under a
// native market symbol (BTCUSDT, KRW-BTC, BTC_KRW). Unique on
// (exchange_id, coin_id). Stale listings are soft-deactivated so
// historical joins keep working.
type CoinListing struct {
	ID           int64  `json:"id" db:"id"`
	ExchangeID   int64  `json:"exchange_id" db:"exchange_id"`
	CoinID       int64  `json:"coin_id" db:"coin_id"`
	MarketSymbol string `json:"market_symbol" db:"market_symbol"`
	Base         string `json:"base" db:"base"`
	Quote        string `json:"quote" db:"quote"`
	IsActive     bool   `json:"is_active" db:"is_active"`
}

// PriceData is one normalized ticker snapshot. Price is in the venue's
// native quote currency (USDT for Binance, KRW for the domestic
// venues). Timestamp is the ingestion clock, captured once per batch.
type PriceData struct {
	ID             int64               `json:"id" db:"id"`
	ExchangeID     int64               `json:"exchange_id" db:"exchange_id"`
	CoinID         int64               `json:"coin_id" db:"coin_id"`
	Price          decimal.Decimal     `json:"price" db:"price"`
	Volume24h      decimal.NullDecimal `json:"volume_24h" db:"volume_24h"`
	PriceChange24h decimal.NullDecimal `json:"price_change_24h" db:"price_change_24h"`
	Timestamp      time.Time           `json:"timestamp" db:"timestamp"`
}

// NewPriceData is a row to be upserted; the store assigns the ID.
type NewPriceData struct {
	ExchangeID     int64
	CoinID         int64
	Price          decimal.Decimal
	Volume24h      decimal.NullDecimal
	PriceChange24h decimal.NullDecimal
	Timestamp      time.Time
}

// ExchangePrice is one venue's most recent price/volume for a symbol,
// as returned by the latest-per-exchange window query.
type ExchangePrice struct {
	Exchange  string              `json:"exchange" db:"exchange"`
	Price     decimal.Decimal     `json:"price" db:"price"`
	Volume24h decimal.NullDecimal `json:"volume_24h" db:"volume_24h"`
	Timestamp time.Time           `json:"timestamp" db:"timestamp"`
}

// FxRate is one persisted USD/KRW reference observation. Append-only;
// the latest row wins.
type FxRate struct {
	ID           int64               `json:"id" db:"id"`
	CurrencyCode string              `json:"currency_code" db:"currency_code"`
	Rate         decimal.Decimal     `json:"rate" db:"rate"`
	TTBRate      decimal.NullDecimal `json:"ttb_rate" db:"ttb_rate"`
	TTSRate      decimal.NullDecimal `json:"tts_rate" db:"tts_rate"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// FxSource selects how the KRW conversion rate is obtained: the
// bank-reference USD/KRW rate, or the market-implied rate from a
// domestic USDT quote.
type FxSource string

const (
	FxUsdKrw  FxSource = "usdkrw"
	FxUsdtKrw FxSource = "usdtkrw"
)

// ParseFxSource normalizes a query value, falling back to def when the
// value is empty or unknown.
func ParseFxSource(s string, def FxSource) FxSource {
	switch FxSource(s) {
	case FxUsdKrw, FxUsdtKrw:
		return FxSource(s)
	}
	return def
}

// DirectionalArbitrage is the result of moving one unit of a coin from
// a notional buy on From to a notional sale on To, both sides in KRW.
type DirectionalArbitrage struct {
	Symbol                   string              `json:"symbol"`
	FromExchange             string              `json:"from_exchange"`
	ToExchange               string              `json:"to_exchange"`
	FromPriceKrw             decimal.Decimal     `json:"from_price_krw"`
	ToPriceKrw               decimal.Decimal     `json:"to_price_krw"`
	FromVolume24h            decimal.NullDecimal `json:"from_volume_24h"`
	ToVolume24h              decimal.NullDecimal `json:"to_volume_24h"`
	FromNotional24h          decimal.NullDecimal `json:"from_notional_24h"`
	ToNotional24h            decimal.NullDecimal `json:"to_notional_24h"`
	PriceDifference          decimal.Decimal     `json:"price_difference"`
	ProfitPercentage         decimal.Decimal     `json:"profit_percentage"`
	TotalFees                decimal.Decimal     `json:"total_fees"`
	EstimatedProfitAfterFees decimal.Decimal     `json:"estimated_profit_after_fees"`
	IsProfitable             bool                `json:"is_profitable"`
	FxType                   FxSource            `json:"fx_type"`
	FxRate                   decimal.Decimal     `json:"fx_rate"`
}

// KimchiHistoryPoint is one persisted premium observation for a fixed
// (symbol, from, to, fx) tuple. Append-only.
type KimchiHistoryPoint struct {
	ID               int64               `json:"id" db:"id"`
	Symbol           string              `json:"symbol" db:"symbol"`
	FromExchange     string              `json:"from_exchange" db:"from_exchange"`
	ToExchange       string              `json:"to_exchange" db:"to_exchange"`
	FxType           FxSource            `json:"fx_type" db:"fx_type"`
	Timestamp        time.Time           `json:"ts" db:"ts"`
	FromPriceKrw     decimal.Decimal     `json:"from_price_krw" db:"from_price_krw"`
	ToPriceKrw       decimal.Decimal     `json:"to_price_krw" db:"to_price_krw"`
	ProfitPercentage decimal.Decimal     `json:"profit_percentage" db:"profit_percentage"`
	FromVolume24h    decimal.NullDecimal `json:"from_volume_24h" db:"from_volume_24h"`
	ToVolume24h      decimal.NullDecimal `json:"to_volume_24h" db:"to_volume_24h"`
	FromNotional24h  decimal.NullDecimal `json:"from_notional_24h" db:"from_notional_24h"`
	ToNotional24h    decimal.NullDecimal `json:"to_notional_24h" db:"to_notional_24h"`
}

// FeeBreakdown decomposes transfer costs for a notional amount.
// Trading and exchange fees are percent-of-amount values; the
// withdrawal fee is in coin units and is reported but not folded into
// the percent-denominated arbitrage fee total.
type FeeBreakdown struct {
	TradingFee    decimal.Decimal `json:"trading_fee"`
	WithdrawalFee decimal.Decimal `json:"withdrawal_fee"`
	ExchangeFee   decimal.Decimal `json:"exchange_fee"`
	TotalFee      decimal.Decimal `json:"total_fee"`
}

// CatalogSyncSummary reports one catalog synchronization pass.
type CatalogSyncSummary struct {
	ActiveTotal int `json:"active_total"`
	Upserts     int `json:"upserts"`
	Deactivated int `json:"deactivated"`
}
