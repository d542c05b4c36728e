package persistence

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/models"
)

// CoinStore manages the coin catalog. Coins are created on first
// sighting and never deleted.
type CoinStore interface {
	// UpsertCoin inserts the coin or refreshes its name, returning the id.
	UpsertCoin(ctx context.Context, symbol, name string) (int64, error)
}

// ExchangeStore reads the seeded exchanges table.
type ExchangeStore interface {
	// ExchangeIDByName resolves a canonical exchange name to its id.
	ExchangeIDByName(ctx context.Context, name string) (int64, error)
}

// ListingStore manages venue-coin listings.
type ListingStore interface {
	// UpsertListing inserts or reactivates a listing with the venue's
	// native market symbol.
	UpsertListing(ctx context.Context, exchangeID, coinID int64, marketSymbol, base, quote string) error

	// DeactivateListingsExcept soft-deactivates the venue's active
	// listings whose coin symbol is not in keep. An empty keep set is a
	// no-op: never blanket-deactivate on an empty upstream response.
	DeactivateListingsExcept(ctx context.Context, exchangeID int64, keep []string) (int64, error)

	// ActiveListedCoinIDs returns coin symbol -> coin id for the venue's
	// active listings. Ingestion resolves coin ids through this map so
	// every persisted price references an active listing.
	ActiveListedCoinIDs(ctx context.Context, exchangeID int64) (map[string]int64, error)

	// CountActiveListings returns the number of active listings on a venue.
	CountActiveListings(ctx context.Context, exchangeID int64) (int, error)

	// CommonSymbols returns symbols active on both venues, ordered
	// lexicographically. limit <= 0 means unlimited.
	CommonSymbols(ctx context.Context, fromExchange, toExchange string, limit int) ([]string, error)
}

// PriceStore persists and reads normalized ticker snapshots.
type PriceStore interface {
	// UpsertPrice inserts a row; on (exchange_id, coin_id, timestamp)
	// conflict the mutable fields are replaced, last writer wins.
	UpsertPrice(ctx context.Context, row models.NewPriceData) error

	// LatestPriceVolumePerExchange returns one row per venue with that
	// venue's most recent price/volume no older than 30 minutes.
	LatestPriceVolumePerExchange(ctx context.Context, symbol string) ([]models.ExchangePrice, error)

	// LatestPrices returns recent rows for a symbol joined with exchange
	// names, newest first.
	LatestPrices(ctx context.Context, symbol string, limit int) ([]models.ExchangePrice, error)
}

// FxStore persists USD/KRW reference observations. Append-only.
type FxStore interface {
	InsertFxRate(ctx context.Context, currencyCode string, rate decimal.Decimal, ttb, tts decimal.NullDecimal) error

	// LatestFxRate returns the most recent persisted rate for a
	// currency, or models.ErrNotFound when none exists.
	LatestFxRate(ctx context.Context, currencyCode string) (*models.FxRate, error)
}

// KimchiStore persists and reads premium history points.
type KimchiStore interface {
	InsertKimchi(ctx context.Context, p models.KimchiHistoryPoint) error

	// QueryKimchi returns points for the tuple within the last given
	// minutes, oldest first.
	QueryKimchi(ctx context.Context, symbol, fromExchange, toExchange string, minutes int) ([]models.KimchiHistoryPoint, error)
}

// Repository aggregates the store interfaces. Consumers should depend
// on the narrowest interface that serves them; the aggregate exists for
// wiring at startup.
type Repository struct {
	Coins     CoinStore
	Exchanges ExchangeStore
	Listings  ListingStore
	Prices    PriceStore
	Fx        FxStore
	Kimchi    KimchiStore
}
