package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// FallbackUsdKrw is the rate of last resort when every provider and the
// store fail. It is returned to callers but never persisted.
var FallbackUsdKrw = decimal.NewFromFloat(1300.0)

const usdCurrencyCode = "USD"

// Read cache TTL. The refresh job runs every ten seconds, so a short
// cache keeps the hot read path off the database without serving stale
// rates.
const rateCacheTTL = 10 * time.Second

// Service acquires the USD/KRW reference rate through a provider chain
// (Naver scrape first, Eximbank second) and persists each successful
// observation.
type Service struct {
	naver    *naverProvider
	eximbank *eximbankProvider
	store    persistence.FxStore
	cache    *gocache.Cache
}

// Options overrides provider endpoints; zero values mean production.
type Options struct {
	NaverURL        string
	EximbankBaseURL string
}

// NewService wires the FX service. authKey is the Eximbank API key; an
// empty key makes the secondary provider fail fast and is tolerated.
func NewService(fetcher *httpclient.Fetcher, store persistence.FxStore, authKey string, opts Options) *Service {
	return &Service{
		naver:    newNaverProvider(fetcher, opts.NaverURL),
		eximbank: newEximbankProvider(fetcher, opts.EximbankBaseURL, authKey),
		store:    store,
		cache:    gocache.New(rateCacheTTL, time.Minute),
	}
}

// FetchAndSaveUsdKrwRate walks the provider chain, persists the first
// success, and returns the rate. A primary failure is a warning only;
// the error returned covers total chain failure.
func (s *Service) FetchAndSaveUsdKrwRate(ctx context.Context) (decimal.Decimal, error) {
	rate, naverErr := s.naver.fetch(ctx)
	if naverErr == nil {
		if err := s.store.InsertFxRate(ctx, usdCurrencyCode, rate, decimal.NullDecimal{}, decimal.NullDecimal{}); err != nil {
			return decimal.Zero, fmt.Errorf("persisting naver rate: %w", err)
		}
		s.cache.Set(usdCurrencyCode, rate, rateCacheTTL)
		return rate, nil
	}
	log.Warn().Err(naverErr).Msg("Primary FX provider failed, trying Eximbank")

	rate, ttb, tts, eximErr := s.eximbank.fetch(ctx)
	if eximErr != nil {
		return decimal.Zero, fmt.Errorf("all FX providers failed: naver: %v; eximbank: %w", naverErr, eximErr)
	}

	if err := s.store.InsertFxRate(ctx, usdCurrencyCode, rate, ttb, tts); err != nil {
		return decimal.Zero, fmt.Errorf("persisting eximbank rate: %w", err)
	}
	s.cache.Set(usdCurrencyCode, rate, rateCacheTTL)

	return rate, nil
}

// GetLatestUsdKrwRate returns the most recent persisted rate, fetching
// fresh when the store is empty. Only when both the store and every
// provider fail does it fall back to FallbackUsdKrw; the fallback is
// never written.
func (s *Service) GetLatestUsdKrwRate(ctx context.Context) decimal.Decimal {
	if cached, ok := s.cache.Get(usdCurrencyCode); ok {
		return cached.(decimal.Decimal)
	}

	row, err := s.store.LatestFxRate(ctx, usdCurrencyCode)
	if err == nil {
		s.cache.Set(usdCurrencyCode, row.Rate, rateCacheTTL)
		return row.Rate
	}
	if !errors.Is(err, models.ErrNotFound) {
		log.Warn().Err(err).Msg("Reading latest FX rate failed, using fallback")
		return FallbackUsdKrw
	}

	rate, err := s.FetchAndSaveUsdKrwRate(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("FX fetch failed with empty store, using fallback")
		return FallbackUsdKrw
	}

	return rate
}
