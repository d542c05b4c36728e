package ingest

import (
	"context"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// ExchangeIDResolver resolves canonical exchange names to their seeded
// row ids. The exchanges table is immutable at runtime, so resolved ids
// are cached without expiry.
type ExchangeIDResolver struct {
	store persistence.ExchangeStore
	cache *gocache.Cache
}

// NewExchangeIDResolver builds a resolver over the exchange store.
func NewExchangeIDResolver(store persistence.ExchangeStore) *ExchangeIDResolver {
	return &ExchangeIDResolver{
		store: store,
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Resolve returns the id for a canonical exchange name, hitting the
// store only on the first lookup.
func (r *ExchangeIDResolver) Resolve(ctx context.Context, name string) (int64, error) {
	if cached, ok := r.cache.Get(name); ok {
		return cached.(int64), nil
	}

	id, err := r.store.ExchangeIDByName(ctx, name)
	if err != nil {
		return 0, err
	}

	r.cache.Set(name, id, gocache.NoExpiration)
	return id, nil
}
