package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/kimchiscan/kimchiscan/internal/arbitrage"
	"github.com/kimchiscan/kimchiscan/internal/fx"
	"github.com/kimchiscan/kimchiscan/internal/ingest"
	"github.com/kimchiscan/kimchiscan/internal/models"
)

// Scheduler owns the cron loop. It holds no business state; it only
// triggers the catalog, price, FX, and snapshot jobs. Job failures are
// logged and never propagate.
type Scheduler struct {
	cfg      Config
	cron     *cron.Cron
	catalog  *ingest.CatalogSync
	ingestor *ingest.PriceIngestor
	fx       *fx.Service
	calc     *arbitrage.Calculator
}

// New builds a scheduler around the given jobs.
func New(cfg Config, catalog *ingest.CatalogSync, ingestor *ingest.PriceIngestor, fxService *fx.Service, calc *arbitrage.Calculator) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
		catalog:  catalog,
		ingestor: ingestor,
		fx:       fxService,
		calc:     calc,
	}
}

// Start primes the catalog, prices, and FX rate once in that order,
// then engages cron. Prime failures are logged and do not abort
// startup; a bad cron expression does.
func (s *Scheduler) Start(ctx context.Context) error {
	s.prime(ctx)

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"prices", s.cfg.Jobs.Prices, func() { s.ingestor.IngestAll(context.Background()) }},
		{"fx", s.cfg.Jobs.Fx, s.refreshFx},
		{"catalog", s.cfg.Jobs.Catalog, func() { s.catalog.SyncAll(context.Background()) }},
		{"kimchi", s.cfg.Jobs.Kimchi, s.snapshotKimchi},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.run); err != nil {
			return fmt.Errorf("scheduling %s job (%q): %w", job.name, job.spec, err)
		}
		log.Info().Str("job", job.name).Str("schedule", job.spec).Msg("Job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and blocks until in-flight jobs complete.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) prime(ctx context.Context) {
	log.Info().Msg("Priming catalog, prices, and FX rate")

	if summaries := s.catalog.SyncAll(ctx); len(summaries) == 0 {
		log.Warn().Msg("Startup catalog sync completed with no venues")
	}
	s.ingestor.IngestAll(ctx)
	s.refreshFx()
}

func (s *Scheduler) refreshFx() {
	if _, err := s.fx.FetchAndSaveUsdKrwRate(context.Background()); err != nil {
		log.Warn().Err(err).Msg("FX refresh failed")
	}
}

func (s *Scheduler) snapshotKimchi() {
	k := s.cfg.Kimchi
	fxSource := models.ParseFxSource(k.FxSource, models.FxUsdKrw)
	if err := s.calc.RecordKimchiSnapshot(context.Background(), k.Symbol, k.FromExchange, k.ToExchange, fxSource); err != nil {
		log.Warn().Str("symbol", k.Symbol).Err(err).Msg("Kimchi snapshot failed")
	}
}
