package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/exchanges"
	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// maxDecimalDigits caps the serialized length of an optional decimal
// before it is persisted. Venue volume fields occasionally arrive in
// scientific or absurdly long form; those are stored as null rather
// than rejected row-and-all.
const maxDecimalDigits = 30

// PriceIngestor pulls tickers from every venue and persists normalized
// snapshots for coins that hold an active listing.
type PriceIngestor struct {
	registry *exchanges.Registry
	listings persistence.ListingStore
	prices   persistence.PriceStore
	ids      *ExchangeIDResolver
}

// NewPriceIngestor wires a price ingestor.
func NewPriceIngestor(registry *exchanges.Registry, listings persistence.ListingStore, prices persistence.PriceStore, ids *ExchangeIDResolver) *PriceIngestor {
	return &PriceIngestor{registry: registry, listings: listings, prices: prices, ids: ids}
}

// IngestAll runs every venue concurrently and returns per-venue upsert
// counts. The batch timestamp is captured once before fan-out so every
// row of the pass shares it. A failed venue is logged and omitted from
// the result.
func (p *PriceIngestor) IngestAll(ctx context.Context) map[string]int {
	adapters := p.registry.All()
	counts := make(map[string]int, len(adapters))
	batchTime := time.Now().UTC()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, adapter := range adapters {
		wg.Add(1)
		go func(a exchanges.Adapter) {
			defer wg.Done()

			n, err := p.IngestVenue(ctx, a, batchTime)
			if err != nil {
				log.Error().Str("exchange", a.Name()).Err(err).Msg("Price ingestion failed for venue")
				return
			}

			mu.Lock()
			counts[a.Name()] = n
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()

	return counts
}

// IngestVenue ingests one venue at the given batch timestamp. Rows that
// fail to upsert are logged and skipped.
func (p *PriceIngestor) IngestVenue(ctx context.Context, adapter exchanges.Adapter, batchTime time.Time) (int, error) {
	start := time.Now()
	defer func() {
		ingestDuration.WithLabelValues(adapter.Name()).Observe(time.Since(start).Seconds())
	}()

	exchangeID, err := p.ids.Resolve(ctx, adapter.Name())
	if err != nil {
		ingestErrors.WithLabelValues(adapter.Name(), "resolve").Inc()
		return 0, fmt.Errorf("resolving exchange %s: %w", adapter.Name(), err)
	}

	listed, err := p.listings.ActiveListedCoinIDs(ctx, exchangeID)
	if err != nil {
		ingestErrors.WithLabelValues(adapter.Name(), "listings").Inc()
		return 0, fmt.Errorf("loading %s listings: %w", adapter.Name(), err)
	}
	if len(listed) == 0 {
		log.Warn().Str("exchange", adapter.Name()).Msg("No active listings, skipping price ingestion")
		return 0, nil
	}

	symbols := make([]string, 0, len(listed))
	for s := range listed {
		symbols = append(symbols, s)
	}

	tickers, err := adapter.FetchTickers(ctx, symbols)
	if err != nil {
		ingestErrors.WithLabelValues(adapter.Name(), "fetch").Inc()
		return 0, fmt.Errorf("fetching %s tickers: %w", adapter.Name(), err)
	}
	tickersFetched.WithLabelValues(adapter.Name()).Add(float64(len(tickers)))

	var upserted int
	for _, t := range tickers {
		coinID, ok := listed[t.Base]
		if !ok {
			continue
		}

		row := models.NewPriceData{
			ExchangeID:     exchangeID,
			CoinID:         coinID,
			Price:          t.Price,
			Volume24h:      sanitizeNullDecimal(t.Volume24h),
			PriceChange24h: sanitizeNullDecimal(t.Change24h),
			Timestamp:      batchTime,
		}

		if err := p.prices.UpsertPrice(ctx, row); err != nil {
			ingestErrors.WithLabelValues(adapter.Name(), "upsert").Inc()
			log.Warn().Str("exchange", adapter.Name()).Str("symbol", t.Base).Err(err).Msg("Skipping price row")
			continue
		}
		upserted++
	}
	pricesUpserted.WithLabelValues(adapter.Name()).Add(float64(upserted))

	log.Info().
		Str("exchange", adapter.Name()).
		Int("fetched", len(tickers)).
		Int("upserted", upserted).
		Msg("Prices ingested")

	return upserted, nil
}

// sanitizeNullDecimal nulls out optional decimals whose serialized form
// would overflow the column. The price itself is never sanitized here;
// a bad price drops in the adapter, not in the store.
func sanitizeNullDecimal(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	if len(d.Decimal.String()) > maxDecimalDigits {
		return decimal.NullDecimal{}
	}
	return d
}
