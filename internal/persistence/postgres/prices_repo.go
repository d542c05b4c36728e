package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// freshnessWindow is the absolute cutoff for "latest" price reads.
// Rows older than this are invisible to arbitrage computation.
const freshnessWindow = 30 * time.Minute

// pricesRepo implements PriceStore for PostgreSQL.
type pricesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPricesRepo creates a PostgreSQL prices repository.
func NewPricesRepo(db *sqlx.DB, timeout time.Duration) persistence.PriceStore {
	return &pricesRepo{db: db, timeout: timeout}
}

// UpsertPrice inserts a snapshot row. On the (exchange_id, coin_id,
// timestamp) unique key only the mutable fields are replaced, so
// repeated writes of the same batch are idempotent and timestamp
// collisions resolve last-writer-wins.
func (r *pricesRepo) UpsertPrice(ctx context.Context, row models.NewPriceData) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO price_data (exchange_id, coin_id, price, volume_24h, price_change_24h, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (exchange_id, coin_id, timestamp) DO UPDATE SET
			price = EXCLUDED.price,
			volume_24h = EXCLUDED.volume_24h,
			price_change_24h = EXCLUDED.price_change_24h`

	_, err := r.db.ExecContext(ctx, query,
		row.ExchangeID, row.CoinID, row.Price, row.Volume24h, row.PriceChange24h, row.Timestamp)
	if err != nil {
		return &models.StoreError{Op: "upsert price", Err: err}
	}

	return nil
}

// LatestPriceVolumePerExchange returns one row per venue with that
// venue's most recent price/volume inside the freshness window.
func (r *pricesRepo) LatestPriceVolumePerExchange(ctx context.Context, symbol string) ([]models.ExchangePrice, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT exchange, price, volume_24h, timestamp FROM (
			SELECT e.name AS exchange, pd.price, pd.volume_24h, pd.timestamp,
			       ROW_NUMBER() OVER (PARTITION BY pd.exchange_id ORDER BY pd.timestamp DESC) AS rn
			FROM price_data pd
			JOIN exchanges e ON e.id = pd.exchange_id
			JOIN coins c ON c.id = pd.coin_id
			WHERE c.symbol = $1 AND pd.timestamp >= NOW() - $2::interval
		) latest
		WHERE rn = 1`

	rows, err := r.db.QueryxContext(ctx, query, symbol, freshnessWindow.String())
	if err != nil {
		return nil, &models.StoreError{Op: "latest price per exchange", Err: err}
	}
	defer rows.Close()

	return scanExchangePrices(rows)
}

// LatestPrices returns recent snapshot rows for a symbol, newest first.
func (r *pricesRepo) LatestPrices(ctx context.Context, symbol string, limit int) ([]models.ExchangePrice, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT e.name AS exchange, pd.price, pd.volume_24h, pd.timestamp
		FROM price_data pd
		JOIN exchanges e ON e.id = pd.exchange_id
		JOIN coins c ON c.id = pd.coin_id
		WHERE c.symbol = $1 AND pd.timestamp >= NOW() - $2::interval
		ORDER BY pd.timestamp DESC
		LIMIT $3`

	rows, err := r.db.QueryxContext(ctx, query, symbol, freshnessWindow.String(), limit)
	if err != nil {
		return nil, &models.StoreError{Op: "latest prices", Err: err}
	}
	defer rows.Close()

	return scanExchangePrices(rows)
}

func scanExchangePrices(rows *sqlx.Rows) ([]models.ExchangePrice, error) {
	var out []models.ExchangePrice
	for rows.Next() {
		var p models.ExchangePrice
		if err := rows.Scan(&p.Exchange, &p.Price, &p.Volume24h, &p.Timestamp); err != nil {
			return nil, &models.StoreError{Op: "scan exchange price", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "scan exchange price", Err: err}
	}
	return out, nil
}
