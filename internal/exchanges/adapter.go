package exchanges

import (
	"context"

	"github.com/shopspring/decimal"
)

// Listing is a discovered venue listing: the coin symbol plus the
// venue's native pair string.
type Listing struct {
	Base         string
	MarketSymbol string
	Quote        string
}

// Ticker is one venue ticker translated to neutral fields. Price is in
// the venue's native quote currency.
type Ticker struct {
	Base      string
	Price     decimal.Decimal
	Volume24h decimal.NullDecimal
	Change24h decimal.NullDecimal
}

// Adapter translates one venue's catalog and ticker endpoints. Adapters
// are pure translators; they never touch the store.
type Adapter interface {
	// Name returns the canonical exchange name (Binance, Upbit, Bithumb).
	Name() string

	// ListSymbols discovers the venue's currently tradable listings.
	ListSymbols(ctx context.Context) ([]Listing, error)

	// FetchTickers returns current tickers. symbols is the venue's
	// listed coin set; venues with batched ticker endpoints use it to
	// build the request, the others ignore it.
	FetchTickers(ctx context.Context, symbols []string) ([]Ticker, error)
}

// Registry enumerates the configured venues keyed by canonical name,
// preserving registration order for deterministic fan-out.
type Registry struct {
	byName map[string]Adapter
	order  []Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byName: make(map[string]Adapter)}
	for _, a := range adapters {
		r.byName[a.Name()] = a
		r.order = append(r.order, a)
	}
	return r
}

// Get returns the adapter for a canonical name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// All returns the adapters in registration order.
func (r *Registry) All() []Adapter {
	return r.order
}
