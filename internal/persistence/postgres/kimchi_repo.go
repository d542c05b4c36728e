package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// kimchiRepo implements KimchiStore for PostgreSQL.
type kimchiRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewKimchiRepo creates a PostgreSQL kimchi history repository.
func NewKimchiRepo(db *sqlx.DB, timeout time.Duration) persistence.KimchiStore {
	return &kimchiRepo{db: db, timeout: timeout}
}

// InsertKimchi appends one premium observation.
func (r *kimchiRepo) InsertKimchi(ctx context.Context, p models.KimchiHistoryPoint) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO kimchi_history
			(symbol, from_exchange, to_exchange, fx_type, ts,
			 from_price_krw, to_price_krw, profit_percentage,
			 from_volume_24h, to_volume_24h, from_notional_24h, to_notional_24h)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		p.Symbol, p.FromExchange, p.ToExchange, string(p.FxType), p.Timestamp,
		p.FromPriceKrw, p.ToPriceKrw, p.ProfitPercentage,
		p.FromVolume24h, p.ToVolume24h, p.FromNotional24h, p.ToNotional24h)
	if err != nil {
		return &models.StoreError{Op: "insert kimchi point", Err: err}
	}

	return nil
}

// QueryKimchi returns the tuple's points within the last given minutes,
// oldest first.
func (r *kimchiRepo) QueryKimchi(ctx context.Context, symbol, fromExchange, toExchange string, minutes int) ([]models.KimchiHistoryPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, symbol, from_exchange, to_exchange, fx_type, ts,
		       from_price_krw, to_price_krw, profit_percentage,
		       from_volume_24h, to_volume_24h, from_notional_24h, to_notional_24h
		FROM kimchi_history
		WHERE symbol = $1 AND from_exchange = $2 AND to_exchange = $3
		  AND ts >= NOW() - make_interval(mins => $4)
		ORDER BY ts ASC`

	rows, err := r.db.QueryxContext(ctx, query, symbol, fromExchange, toExchange, minutes)
	if err != nil {
		return nil, &models.StoreError{Op: "query kimchi history", Err: err}
	}
	defer rows.Close()

	var points []models.KimchiHistoryPoint
	for rows.Next() {
		var p models.KimchiHistoryPoint
		err := rows.Scan(&p.ID, &p.Symbol, &p.FromExchange, &p.ToExchange, &p.FxType, &p.Timestamp,
			&p.FromPriceKrw, &p.ToPriceKrw, &p.ProfitPercentage,
			&p.FromVolume24h, &p.ToVolume24h, &p.FromNotional24h, &p.ToNotional24h)
		if err != nil {
			return nil, &models.StoreError{Op: "scan kimchi point", Err: err}
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "scan kimchi point", Err: err}
	}

	return points, nil
}
