package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickersFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kimchiscan_ingest_tickers_fetched_total",
		Help: "Tickers returned by venue APIs before filtering.",
	}, []string{"exchange"})

	pricesUpserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kimchiscan_ingest_prices_upserted_total",
		Help: "Price rows successfully written to the store.",
	}, []string{"exchange"})

	ingestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kimchiscan_ingest_errors_total",
		Help: "Errors during price ingestion, by venue and stage.",
	}, []string{"exchange", "stage"})

	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kimchiscan_ingest_duration_seconds",
		Help:    "Wall time of one venue's ingestion pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"exchange"})

	catalogUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kimchiscan_catalog_upserts_total",
		Help: "Listings upserted during catalog synchronization.",
	}, []string{"exchange"})

	catalogDeactivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kimchiscan_catalog_deactivated_total",
		Help: "Listings soft-deactivated during catalog synchronization.",
	}, []string{"exchange"})
)
