package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kimchiscan/kimchiscan/internal/exchanges"
	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// CatalogSync discovers each venue's tradable symbols and reconciles
// the coin and listing tables against them.
type CatalogSync struct {
	registry *exchanges.Registry
	coins    persistence.CoinStore
	listings persistence.ListingStore
	ids      *ExchangeIDResolver
}

// NewCatalogSync wires a catalog synchronizer.
func NewCatalogSync(registry *exchanges.Registry, coins persistence.CoinStore, listings persistence.ListingStore, ids *ExchangeIDResolver) *CatalogSync {
	return &CatalogSync{registry: registry, coins: coins, listings: listings, ids: ids}
}

// SyncAll reconciles every registered venue concurrently. A failed
// venue is logged and reported; the others still complete.
func (s *CatalogSync) SyncAll(ctx context.Context) map[string]models.CatalogSyncSummary {
	adapters := s.registry.All()
	summaries := make(map[string]models.CatalogSyncSummary, len(adapters))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, adapter := range adapters {
		wg.Add(1)
		go func(a exchanges.Adapter) {
			defer wg.Done()

			summary, err := s.SyncVenue(ctx, a)
			if err != nil {
				log.Error().Str("exchange", a.Name()).Err(err).Msg("Catalog sync failed for venue")
				return
			}

			mu.Lock()
			summaries[a.Name()] = summary
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()

	return summaries
}

// SyncVenue reconciles one venue: every discovered listing is upserted,
// then listings absent from the discovery set are soft-deactivated.
func (s *CatalogSync) SyncVenue(ctx context.Context, adapter exchanges.Adapter) (models.CatalogSyncSummary, error) {
	var summary models.CatalogSyncSummary

	listings, err := adapter.ListSymbols(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing %s symbols: %w", adapter.Name(), err)
	}

	exchangeID, err := s.ids.Resolve(ctx, adapter.Name())
	if err != nil {
		return summary, fmt.Errorf("resolving exchange %s: %w", adapter.Name(), err)
	}

	keep := make([]string, 0, len(listings))
	for _, l := range listings {
		coinID, err := s.coins.UpsertCoin(ctx, l.Base, l.Base)
		if err != nil {
			log.Warn().Str("exchange", adapter.Name()).Str("symbol", l.Base).Err(err).Msg("Skipping coin upsert")
			continue
		}

		if err := s.listings.UpsertListing(ctx, exchangeID, coinID, l.MarketSymbol, l.Base, l.Quote); err != nil {
			log.Warn().Str("exchange", adapter.Name()).Str("symbol", l.Base).Err(err).Msg("Skipping listing upsert")
			continue
		}

		keep = append(keep, l.Base)
		summary.Upserts++
	}
	catalogUpserts.WithLabelValues(adapter.Name()).Add(float64(summary.Upserts))

	deactivated, err := s.listings.DeactivateListingsExcept(ctx, exchangeID, keep)
	if err != nil {
		return summary, fmt.Errorf("deactivating %s listings: %w", adapter.Name(), err)
	}
	summary.Deactivated = int(deactivated)
	catalogDeactivated.WithLabelValues(adapter.Name()).Add(float64(deactivated))

	active, err := s.listings.CountActiveListings(ctx, exchangeID)
	if err != nil {
		return summary, fmt.Errorf("counting %s listings: %w", adapter.Name(), err)
	}
	summary.ActiveTotal = active

	log.Info().
		Str("exchange", adapter.Name()).
		Int("active", summary.ActiveTotal).
		Int("upserts", summary.Upserts).
		Int("deactivated", summary.Deactivated).
		Msg("Catalog synchronized")

	return summary, nil
}
