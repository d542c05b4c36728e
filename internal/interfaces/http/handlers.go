package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/kimchiscan/kimchiscan/internal/arbitrage"
	"github.com/kimchiscan/kimchiscan/internal/exchanges"
	"github.com/kimchiscan/kimchiscan/internal/fx"
	"github.com/kimchiscan/kimchiscan/internal/ingest"
	"github.com/kimchiscan/kimchiscan/internal/models"
	"github.com/kimchiscan/kimchiscan/internal/persistence"
)

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers carries the read surface's dependencies.
type Handlers struct {
	calc     *arbitrage.Calculator
	fx       *fx.Service
	fxStore  persistence.FxStore
	prices   persistence.PriceStore
	kimchi   persistence.KimchiStore
	catalog  *ingest.CatalogSync
	ingestor *ingest.PriceIngestor
	registry *exchanges.Registry
	db       Pinger
}

// NewHandlers wires the handler set.
func NewHandlers(calc *arbitrage.Calculator, fxService *fx.Service, repo *persistence.Repository, catalog *ingest.CatalogSync, ingestor *ingest.PriceIngestor, registry *exchanges.Registry, db Pinger) *Handlers {
	return &Handlers{
		calc:     calc,
		fx:       fxService,
		fxStore:  repo.Fx,
		prices:   repo.Prices,
		kimchi:   repo.Kimchi,
		catalog:  catalog,
		ingestor: ingestor,
		registry: registry,
		db:       db,
	}
}

// normalizeExchange case-folds then title-cases a query value to one of
// the canonical exchange names.
func normalizeExchange(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binance":
		return models.ExchangeBinance, true
	case "upbit":
		return models.ExchangeUpbit, true
	case "bithumb":
		return models.ExchangeBithumb, true
	}
	return "", false
}

func parseFees(s string, def bool) bool {
	switch strings.ToLower(s) {
	case "include", "true", "1":
		return true
	case "exclude", "false", "0":
		return false
	}
	return def
}

// ArbitrageList handles GET /api/v1/arbitrage. fx defaults to usdkrw
// and fees to exclude for list reads.
func (h *Handlers) ArbitrageList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, ok := normalizeExchange(q.Get("from"))
	if !ok {
		writeBadRequest(w, r, "unknown from exchange")
		return
	}
	to, ok := normalizeExchange(q.Get("to"))
	if !ok {
		writeBadRequest(w, r, "unknown to exchange")
		return
	}

	fxSource := models.ParseFxSource(q.Get("fx"), models.FxUsdKrw)
	includeFees := parseFees(q.Get("fees"), false)

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	results, err := h.calc.GetDirectionalArbitrageList(r.Context(), from, to, fxSource, includeFees, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []models.DirectionalArbitrage{}
	}

	writeJSON(w, http.StatusOK, results)
}

// ArbitrageSymbol handles GET /api/v1/arbitrage/{symbol}. fx defaults
// to usdtkrw and fees to include for single-symbol reads.
func (h *Handlers) ArbitrageSymbol(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	from, ok := normalizeExchange(q.Get("from"))
	if !ok {
		writeBadRequest(w, r, "unknown from exchange")
		return
	}
	to, ok := normalizeExchange(q.Get("to"))
	if !ok {
		writeBadRequest(w, r, "unknown to exchange")
		return
	}

	fxSource := models.ParseFxSource(q.Get("fx"), models.FxUsdtKrw)
	includeFees := parseFees(q.Get("fees"), true)

	arb, err := h.calc.GetDirectionalArbitrageWithOptions(r.Context(), symbol, from, to, fxSource, includeFees)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, arb)
}

// KimchiHistory handles GET /api/v1/kimchi-history.
func (h *Handlers) KimchiHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(q.Get("symbol"))
	if symbol == "" {
		symbol = "ETH"
	}

	from, ok := normalizeExchange(q.Get("from"))
	if !ok {
		from = models.ExchangeBinance
	}
	to, ok := normalizeExchange(q.Get("to"))
	if !ok {
		to = models.ExchangeUpbit
	}

	minutes := 60
	if raw := q.Get("minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, r, "minutes must be a positive integer")
			return
		}
		minutes = n
	}

	points, err := h.kimchi.QueryKimchi(r.Context(), symbol, from, to, minutes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if points == nil {
		points = []models.KimchiHistoryPoint{}
	}

	writeJSON(w, http.StatusOK, points)
}

type exchangeRateResponse struct {
	CurrencyPair string          `json:"currency_pair"`
	Rate         decimal.Decimal `json:"rate"`
	Timestamp    time.Time       `json:"timestamp"`
	Note         string          `json:"note,omitempty"`
}

// ExchangeRate handles GET /api/v1/exchange-rate. With an empty store
// it triggers a fetch; only a total chain failure serves the fallback
// constant, flagged in the note.
func (h *Handlers) ExchangeRate(w http.ResponseWriter, r *http.Request) {
	row, err := h.fxStore.LatestFxRate(r.Context(), "USD")
	if err == nil {
		writeJSON(w, http.StatusOK, exchangeRateResponse{
			CurrencyPair: "USD/KRW",
			Rate:         row.Rate,
			Timestamp:    row.CreatedAt,
		})
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		writeError(w, r, err)
		return
	}

	rate, err := h.fx.FetchAndSaveUsdKrwRate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, exchangeRateResponse{
			CurrencyPair: "USD/KRW",
			Rate:         fx.FallbackUsdKrw,
			Timestamp:    time.Now().UTC(),
			Note:         "fallback rate, all providers unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, exchangeRateResponse{
		CurrencyPair: "USD/KRW",
		Rate:         rate,
		Timestamp:    time.Now().UTC(),
	})
}

// Prices handles GET /api/v1/prices/{symbol}: recent rows per venue,
// newest first.
func (h *Handlers) Prices(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, r, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.prices.LatestPrices(r.Context(), symbol, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, r, fmt.Errorf("no recent prices for %s: %w", symbol, models.ErrNotFound))
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// Fees handles GET /api/v1/fees/{symbol}/{amount}.
func (h *Handlers) Fees(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := strings.ToUpper(vars["symbol"])

	amount, err := decimal.NewFromString(vars["amount"])
	if err != nil || amount.IsNegative() {
		writeBadRequest(w, r, "amount must be a non-negative decimal")
		return
	}

	writeJSON(w, http.StatusOK, arbitrage.FeeBreakdown(symbol, amount))
}

// SyncCoins handles POST /api/v1/admin/sync-coins. exchange selects one
// venue; empty or "all" reconciles every venue and sums the counters.
func (h *Handlers) SyncCoins(w http.ResponseWriter, r *http.Request) {
	target := strings.ToLower(r.URL.Query().Get("exchange"))

	if target == "" || target == "all" {
		var total models.CatalogSyncSummary
		for _, summary := range h.catalog.SyncAll(r.Context()) {
			total.ActiveTotal += summary.ActiveTotal
			total.Upserts += summary.Upserts
			total.Deactivated += summary.Deactivated
		}
		writeJSON(w, http.StatusOK, total)
		return
	}

	name, ok := normalizeExchange(target)
	if !ok {
		writeBadRequest(w, r, "unknown exchange")
		return
	}
	adapter, ok := h.registry.Get(name)
	if !ok {
		writeBadRequest(w, r, "exchange not registered")
		return
	}

	summary, err := h.catalog.SyncVenue(r.Context(), adapter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type ingestNowResponse struct {
	OK        bool           `json:"ok"`
	ElapsedMs int64          `json:"elapsed_ms"`
	Upserted  map[string]int `json:"upserted"`
}

// IngestNow handles POST /api/v1/admin/ingest-now.
func (h *Handlers) IngestNow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	counts := h.ingestor.IngestAll(r.Context())

	writeJSON(w, http.StatusOK, ingestNowResponse{
		OK:        true,
		ElapsedMs: time.Since(start).Milliseconds(),
		Upserted:  counts,
	})
}

// Health handles GET /health with a live database ping.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound is the fallback handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
}
