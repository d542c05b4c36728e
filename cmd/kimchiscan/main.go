package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kimchiscan/kimchiscan/internal/arbitrage"
	"github.com/kimchiscan/kimchiscan/internal/config"
	"github.com/kimchiscan/kimchiscan/internal/exchanges"
	"github.com/kimchiscan/kimchiscan/internal/fx"
	"github.com/kimchiscan/kimchiscan/internal/infrastructure/db"
	"github.com/kimchiscan/kimchiscan/internal/infrastructure/httpclient"
	"github.com/kimchiscan/kimchiscan/internal/ingest"
	httpapi "github.com/kimchiscan/kimchiscan/internal/interfaces/http"
	"github.com/kimchiscan/kimchiscan/internal/scheduler"
)

var schedulerConfigPath string

func main() {
	root := &cobra.Command{
		Use:   "kimchiscan",
		Short: "Kimchi premium scanner: price ingestion and KRW arbitrage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.PersistentFlags().StringVar(&schedulerConfigPath, "scheduler-config", "", "YAML file overriding the cron schedules")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP read surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one catalog synchronization pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(func(ctx context.Context, a *app) error {
				summaries := a.catalog.SyncAll(ctx)
				if len(summaries) == 0 {
					return fmt.Errorf("catalog sync failed on every venue")
				}
				return nil
			})
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one price ingestion pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(func(ctx context.Context, a *app) error {
				counts := a.ingestor.IngestAll(ctx)
				if len(counts) == 0 {
					return fmt.Errorf("price ingestion failed on every venue")
				}
				return nil
			})
		},
	}

	fxCmd := &cobra.Command{
		Use:   "fx",
		Short: "Fetch and persist the USD/KRW rate once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(func(ctx context.Context, a *app) error {
				rate, err := a.fxService.FetchAndSaveUsdKrwRate(ctx)
				if err != nil {
					return err
				}
				log.Info().Str("rate", rate.String()).Msg("USD/KRW rate saved")
				return nil
			})
		},
	}

	root.AddCommand(serveCmd, syncCmd, ingestCmd, fxCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Fatal")
		os.Exit(1)
	}
}

// app is the wired object graph shared by serve and the one-shots.
type app struct {
	cfg       config.Config
	manager   *db.Manager
	registry  *exchanges.Registry
	catalog   *ingest.CatalogSync
	ingestor  *ingest.PriceIngestor
	fxService *fx.Service
	calc      *arbitrage.Calculator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	setupLogging(cfg.LogLevel)

	manager, err := db.NewManager(db.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	fetcher := httpclient.New(10 * time.Second)
	fetcher.Register("Binance", 10, 20)
	fetcher.Register("Upbit", 8, 10)
	fetcher.Register("Bithumb", 8, 10)
	fetcher.Register("naver", 1, 2)
	fetcher.Register("eximbank", 1, 2)

	registry := exchanges.NewRegistry(
		exchanges.NewBinance(fetcher, ""),
		exchanges.NewUpbit(fetcher, ""),
		exchanges.NewBithumb(fetcher, ""),
	)

	repo := manager.Repository()
	ids := ingest.NewExchangeIDResolver(repo.Exchanges)
	fxService := fx.NewService(fetcher, repo.Fx, cfg.ExchangeRateAPIKey, fx.Options{})

	return &app{
		cfg:       cfg,
		manager:   manager,
		registry:  registry,
		catalog:   ingest.NewCatalogSync(registry, repo.Coins, repo.Listings, ids),
		ingestor:  ingest.NewPriceIngestor(registry, repo.Listings, repo.Prices, ids),
		fxService: fxService,
		calc:      arbitrage.NewCalculator(repo.Prices, repo.Listings, repo.Kimchi, fxService),
	}, nil
}

func runServe() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.manager.Close()

	schedCfg, err := scheduler.LoadConfig(schedulerConfigPath)
	if err != nil {
		return err
	}

	sched := scheduler.New(schedCfg, a.catalog, a.ingestor, a.fxService, a.calc)
	if err := sched.Start(context.Background()); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	handlers := httpapi.NewHandlers(a.calc, a.fxService, a.manager.Repository(), a.catalog, a.ingestor, a.registry, a.manager)
	server := httpapi.NewServer(httpapi.DefaultServerConfig(a.cfg.Addr()), handlers)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		sched.Stop()
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	sched.Stop()

	return nil
}

func runOneShot(run func(context.Context, *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return run(ctx, a)
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
