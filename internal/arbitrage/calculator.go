package arbitrage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// listWorkers bounds the per-symbol fan-out of list computation. Output
// order comes from the final sort, not from completion order.
const listWorkers = 8

// FxReader supplies the USD/KRW reference rate. The read never fails;
// the FX service owns the fallback policy.
type FxReader interface {
	GetLatestUsdKrwRate(ctx context.Context) decimal.Decimal
}

// Calculator computes directional KRW arbitrage between venues from the
// freshest stored prices.
type Calculator struct {
	prices   persistence.PriceStore
	listings persistence.ListingStore
	kimchi   persistence.KimchiStore
	fx       FxReader
}

// NewCalculator wires a calculator.
func NewCalculator(prices persistence.PriceStore, listings persistence.ListingStore, kimchi persistence.KimchiStore, fx FxReader) *Calculator {
	return &Calculator{prices: prices, listings: listings, kimchi: kimchi, fx: fx}
}

// GetDirectionalArbitrageWithOptions computes the premium of buying
// symbol on fromExchange and selling on toExchange, both sides in KRW.
// Missing recent prices on either side yield models.ErrNotFound.
func (c *Calculator) GetDirectionalArbitrageWithOptions(ctx context.Context, symbol, fromExchange, toExchange string, fxSource models.FxSource, includeFees bool) (*models.DirectionalArbitrage, error) {
	fxType, fxRate := c.resolveFxRate(ctx, fxSource)
	return c.compute(ctx, symbol, fromExchange, toExchange, fxType, fxRate, includeFees)
}

// GetDirectionalArbitrageList computes arbitrage for every symbol
// active on both venues, sorted by raw profit descending. Per-symbol
// failures are dropped; the FX rate is resolved once for the whole
// pass.
func (c *Calculator) GetDirectionalArbitrageList(ctx context.Context, fromExchange, toExchange string, fxSource models.FxSource, includeFees bool, limit int) ([]models.DirectionalArbitrage, error) {
	symbols, err := c.listings.CommonSymbols(ctx, fromExchange, toExchange, limit)
	if err != nil {
		return nil, fmt.Errorf("listing common symbols: %w", err)
	}

	fxType, fxRate := c.resolveFxRate(ctx, fxSource)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []models.DirectionalArbitrage
	)
	sem := make(chan struct{}, listWorkers)
	for _, symbol := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			arb, err := c.compute(ctx, sym, fromExchange, toExchange, fxType, fxRate, includeFees)
			if err != nil {
				log.Debug().Str("symbol", sym).Err(err).Msg("Dropping symbol from arbitrage list")
				return
			}

			mu.Lock()
			results = append(results, *arb)
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].ProfitPercentage.GreaterThan(results[j].ProfitPercentage)
	})

	return results, nil
}

// RecordKimchiSnapshot computes the fee-free premium for a fixed tuple
// and appends it to the history table at the current UTC instant.
func (c *Calculator) RecordKimchiSnapshot(ctx context.Context, symbol, fromExchange, toExchange string, fxSource models.FxSource) error {
	arb, err := c.GetDirectionalArbitrageWithOptions(ctx, symbol, fromExchange, toExchange, fxSource, false)
	if err != nil {
		return fmt.Errorf("computing kimchi snapshot for %s: %w", symbol, err)
	}

	point := models.KimchiHistoryPoint{
		Symbol:           symbol,
		FromExchange:     fromExchange,
		ToExchange:       toExchange,
		FxType:           arb.FxType,
		Timestamp:        time.Now().UTC(),
		FromPriceKrw:     arb.FromPriceKrw,
		ToPriceKrw:       arb.ToPriceKrw,
		ProfitPercentage: arb.ProfitPercentage,
		FromVolume24h:    arb.FromVolume24h,
		ToVolume24h:      arb.ToVolume24h,
		FromNotional24h:  arb.FromNotional24h,
		ToNotional24h:    arb.ToNotional24h,
	}

	if err := c.kimchi.InsertKimchi(ctx, point); err != nil {
		return fmt.Errorf("inserting kimchi point for %s: %w", symbol, err)
	}

	return nil
}

// resolveFxRate maps an FX source to a concrete rate. usdtkrw uses the
// freshest domestic USDT quote (Upbit preferred over Bithumb); when no
// USDT quote exists it falls through to the reference rate while
// keeping the requested label, so callers can see which source they
// asked for even when it was substituted.
func (c *Calculator) resolveFxRate(ctx context.Context, fxSource models.FxSource) (models.FxSource, decimal.Decimal) {
	if fxSource == models.FxUsdtKrw {
		if rate, ok := c.usdtKrwRate(ctx); ok {
			return models.FxUsdtKrw, rate
		}
		log.Warn().Msg("No domestic USDT quote, falling through to USD/KRW reference rate")
		return models.FxUsdtKrw, c.fx.GetLatestUsdKrwRate(ctx)
	}

	return models.FxUsdKrw, c.fx.GetLatestUsdKrwRate(ctx)
}

func (c *Calculator) usdtKrwRate(ctx context.Context) (decimal.Decimal, bool) {
	rows, err := c.prices.LatestPriceVolumePerExchange(ctx, "USDT")
	if err != nil {
		log.Warn().Err(err).Msg("Reading USDT quotes failed")
		return decimal.Zero, false
	}

	for _, venue := range []string{models.ExchangeUpbit, models.ExchangeBithumb} {
		for _, row := range rows {
			if row.Exchange == venue && row.Price.IsPositive() {
				return row.Price, true
			}
		}
	}

	return decimal.Zero, false
}

func (c *Calculator) compute(ctx context.Context, symbol, fromExchange, toExchange string, fxType models.FxSource, fxRate decimal.Decimal, includeFees bool) (*models.DirectionalArbitrage, error) {
	rows, err := c.prices.LatestPriceVolumePerExchange(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("reading latest prices for %s: %w", symbol, err)
	}

	var fromRow, toRow *models.ExchangePrice
	for i := range rows {
		switch rows[i].Exchange {
		case fromExchange:
			fromRow = &rows[i]
		case toExchange:
			toRow = &rows[i]
		}
	}
	if fromRow == nil {
		return nil, fmt.Errorf("no recent %s price on %s: %w", symbol, fromExchange, models.ErrNotFound)
	}
	if toRow == nil {
		return nil, fmt.Errorf("no recent %s price on %s: %w", symbol, toExchange, models.ErrNotFound)
	}

	fromKrw := toKrw(fromExchange, fromRow.Price, fxRate)
	toPriceKrw := toKrw(toExchange, toRow.Price, fxRate)

	if fromKrw.IsZero() {
		return nil, fmt.Errorf("zero %s price on %s", symbol, fromExchange)
	}

	diff := toPriceKrw.Sub(fromKrw)
	profitPct := diff.Div(fromKrw).Mul(hundred)

	totalFees := decimal.Zero
	if includeFees {
		totalFees = totalFeePct()
	}
	afterFees := profitPct.Sub(totalFees)

	return &models.DirectionalArbitrage{
		Symbol:                   symbol,
		FromExchange:             fromExchange,
		ToExchange:               toExchange,
		FromPriceKrw:             fromKrw,
		ToPriceKrw:               toPriceKrw,
		FromVolume24h:            fromRow.Volume24h,
		ToVolume24h:              toRow.Volume24h,
		FromNotional24h:          notional(fromKrw, fromRow.Volume24h),
		ToNotional24h:            notional(toPriceKrw, toRow.Volume24h),
		PriceDifference:          diff,
		ProfitPercentage:         profitPct,
		TotalFees:                totalFees,
		EstimatedProfitAfterFees: afterFees,
		IsProfitable:             afterFees.IsPositive(),
		FxType:                   fxType,
		FxRate:                   fxRate,
	}, nil
}

// toKrw converts a venue price to KRW. Only Binance quotes in USDT;
// domestic venues already quote in KRW and pass through.
func toKrw(exchange string, price, fxRate decimal.Decimal) decimal.Decimal {
	if exchange == models.ExchangeBinance {
		return price.Mul(fxRate)
	}
	return price
}

func notional(priceKrw decimal.Decimal, volume decimal.NullDecimal) decimal.NullDecimal {
	if !volume.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: priceKrw.Mul(volume.Decimal), Valid: true}
}
