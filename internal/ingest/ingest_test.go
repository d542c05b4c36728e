package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimchiscan/kimchiscan/internal/exchanges"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

type fakeAdapter struct {
	name     string
	listings []exchanges.Listing
	tickers  []exchanges.Ticker
	listErr  error
	fetchErr error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) ListSymbols(context.Context) ([]exchanges.Listing, error) {
	return f.listings, f.listErr
}

func (f *fakeAdapter) FetchTickers(context.Context, []string) ([]exchanges.Ticker, error) {
	return f.tickers, f.fetchErr
}

type fakeExchangeStore struct {
	ids   map[string]int64
	calls int
}

func (f *fakeExchangeStore) ExchangeIDByName(_ context.Context, name string) (int64, error) {
	f.calls++
	id, ok := f.ids[name]
	if !ok {
		return 0, models.ErrNotFound
	}
	return id, nil
}

type fakeCoinStore struct {
	ids    map[string]int64
	nextID int64
}

func (f *fakeCoinStore) UpsertCoin(_ context.Context, symbol, _ string) (int64, error) {
	if f.ids == nil {
		f.ids = make(map[string]int64)
	}
	if id, ok := f.ids[symbol]; ok {
		return id, nil
	}
	f.nextID++
	f.ids[symbol] = f.nextID
	return f.nextID, nil
}

type fakeListingStore struct {
	upserts     []string
	lastKeep    []string
	active      map[string]int64
	deactivated int64
	common      []string
}

func (f *fakeListingStore) UpsertListing(_ context.Context, _, _ int64, marketSymbol, _, _ string) error {
	f.upserts = append(f.upserts, marketSymbol)
	return nil
}

func (f *fakeListingStore) DeactivateListingsExcept(_ context.Context, _ int64, keep []string) (int64, error) {
	f.lastKeep = keep
	if len(keep) == 0 {
		return 0, nil
	}
	return f.deactivated, nil
}

func (f *fakeListingStore) ActiveListedCoinIDs(context.Context, int64) (map[string]int64, error) {
	return f.active, nil
}

func (f *fakeListingStore) CountActiveListings(context.Context, int64) (int, error) {
	return len(f.active) + len(f.upserts), nil
}

func (f *fakeListingStore) CommonSymbols(context.Context, string, string, int) ([]string, error) {
	return f.common, nil
}

type fakePriceStore struct {
	rows    []models.NewPriceData
	failFor map[int64]bool
}

func (f *fakePriceStore) UpsertPrice(_ context.Context, row models.NewPriceData) error {
	if f.failFor[row.CoinID] {
		return &models.StoreError{Op: "upsert price", Err: fmt.Errorf("boom")}
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakePriceStore) LatestPriceVolumePerExchange(context.Context, string) ([]models.ExchangePrice, error) {
	return nil, nil
}

func (f *fakePriceStore) LatestPrices(context.Context, string, int) ([]models.ExchangePrice, error) {
	return nil, nil
}

func newResolver(ids map[string]int64) (*ExchangeIDResolver, *fakeExchangeStore) {
	store := &fakeExchangeStore{ids: ids}
	return NewExchangeIDResolver(store), store
}

func TestExchangeIDResolverCachesLookups(t *testing.T) {
	resolver, store := newResolver(map[string]int64{models.ExchangeUpbit: 2})

	for i := 0; i < 3; i++ {
		id, err := resolver.Resolve(context.Background(), models.ExchangeUpbit)
		require.NoError(t, err)
		assert.Equal(t, int64(2), id)
	}

	assert.Equal(t, 1, store.calls)
}

func TestCatalogSyncVenueUpsertsAndDeactivates(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ExchangeUpbit,
		listings: []exchanges.Listing{
			{Base: "BTC", MarketSymbol: "KRW-BTC", Quote: "KRW"},
			{Base: "ETH", MarketSymbol: "KRW-ETH", Quote: "KRW"},
		},
	}
	coins := &fakeCoinStore{}
	listings := &fakeListingStore{deactivated: 1}
	resolver, _ := newResolver(map[string]int64{models.ExchangeUpbit: 2})

	sync := NewCatalogSync(exchanges.NewRegistry(adapter), coins, listings, resolver)

	summary, err := sync.SyncVenue(context.Background(), adapter)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Upserts)
	assert.Equal(t, 1, summary.Deactivated)
	assert.ElementsMatch(t, []string{"KRW-BTC", "KRW-ETH"}, listings.upserts)
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, listings.lastKeep)
}

func TestCatalogSyncEmptyUpstreamPassesEmptyKeep(t *testing.T) {
	adapter := &fakeAdapter{name: models.ExchangeBithumb}
	coins := &fakeCoinStore{}
	listings := &fakeListingStore{deactivated: 99}
	resolver, _ := newResolver(map[string]int64{models.ExchangeBithumb: 3})

	sync := NewCatalogSync(exchanges.NewRegistry(adapter), coins, listings, resolver)

	summary, err := sync.SyncVenue(context.Background(), adapter)
	require.NoError(t, err)

	assert.Zero(t, summary.Upserts)
	assert.Zero(t, summary.Deactivated)
	assert.Empty(t, listings.lastKeep)
}

func TestCatalogSyncAllSkipsFailedVenue(t *testing.T) {
	good := &fakeAdapter{
		name:     models.ExchangeUpbit,
		listings: []exchanges.Listing{{Base: "BTC", MarketSymbol: "KRW-BTC", Quote: "KRW"}},
	}
	bad := &fakeAdapter{name: models.ExchangeBinance, listErr: fmt.Errorf("down")}

	resolver, _ := newResolver(map[string]int64{models.ExchangeUpbit: 2, models.ExchangeBinance: 1})
	sync := NewCatalogSync(exchanges.NewRegistry(good, bad), &fakeCoinStore{}, &fakeListingStore{}, resolver)

	summaries := sync.SyncAll(context.Background())

	require.Len(t, summaries, 1)
	assert.Contains(t, summaries, models.ExchangeUpbit)
}

func TestIngestVenueSharesBatchTimestampAndFiltersUnlisted(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ExchangeBinance,
		tickers: []exchanges.Ticker{
			{Base: "BTC", Price: decimal.RequireFromString("60000")},
			{Base: "ETH", Price: decimal.RequireFromString("2500")},
			{Base: "SHITCOIN", Price: decimal.RequireFromString("0.001")},
		},
	}
	listings := &fakeListingStore{active: map[string]int64{"BTC": 7, "ETH": 8}}
	prices := &fakePriceStore{}
	resolver, _ := newResolver(map[string]int64{models.ExchangeBinance: 1})

	ingestor := NewPriceIngestor(exchanges.NewRegistry(adapter), listings, prices, resolver)

	batchTime := time.Now().UTC()
	n, err := ingestor.IngestVenue(context.Background(), adapter, batchTime)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, prices.rows, 2)

	for _, row := range prices.rows {
		assert.Equal(t, batchTime, row.Timestamp)
		assert.True(t, row.Price.IsPositive())
	}
}

func TestIngestVenueSanitizesOversizedVolume(t *testing.T) {
	hugeVolume := decimal.RequireFromString("1." + strings.Repeat("9", 40))
	adapter := &fakeAdapter{
		name: models.ExchangeUpbit,
		tickers: []exchanges.Ticker{{
			Base:      "BTC",
			Price:     decimal.RequireFromString("83200000"),
			Volume24h: decimal.NullDecimal{Decimal: hugeVolume, Valid: true},
		}},
	}
	listings := &fakeListingStore{active: map[string]int64{"BTC": 7}}
	prices := &fakePriceStore{}
	resolver, _ := newResolver(map[string]int64{models.ExchangeUpbit: 2})

	ingestor := NewPriceIngestor(exchanges.NewRegistry(adapter), listings, prices, resolver)

	_, err := ingestor.IngestVenue(context.Background(), adapter, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, prices.rows, 1)

	assert.False(t, prices.rows[0].Volume24h.Valid)
	assert.True(t, prices.rows[0].Price.Equal(decimal.RequireFromString("83200000")))
}

func TestIngestVenueSkipsFailedRows(t *testing.T) {
	adapter := &fakeAdapter{
		name: models.ExchangeBinance,
		tickers: []exchanges.Ticker{
			{Base: "BTC", Price: decimal.RequireFromString("60000")},
			{Base: "ETH", Price: decimal.RequireFromString("2500")},
		},
	}
	listings := &fakeListingStore{active: map[string]int64{"BTC": 7, "ETH": 8}}
	prices := &fakePriceStore{failFor: map[int64]bool{7: true}}
	resolver, _ := newResolver(map[string]int64{models.ExchangeBinance: 1})

	ingestor := NewPriceIngestor(exchanges.NewRegistry(adapter), listings, prices, resolver)

	n, err := ingestor.IngestVenue(context.Background(), adapter, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestVenueNoListingsIsNoOp(t *testing.T) {
	adapter := &fakeAdapter{name: models.ExchangeBithumb}
	resolver, _ := newResolver(map[string]int64{models.ExchangeBithumb: 3})

	ingestor := NewPriceIngestor(exchanges.NewRegistry(adapter), &fakeListingStore{}, &fakePriceStore{}, resolver)

	n, err := ingestor.IngestVenue(context.Background(), adapter, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
}
