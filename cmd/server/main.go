package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tudbom/counter-api/internal/config"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/events"
	"github.com/tudbom/counter-api/internal/router"
	"github.com/tudbom/counter-api/internal/service"
	"github.com/tudbom/counter-api/internal/ws"
	"github.com/tudbom/counter-api/migrations"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer closeStores()

	hub := ws.NewHub()
	go hub.Run(ctx)

	publishers := events.Fanout{hub}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer func() {
			if err := kafkaPub.Close(); err != nil {
				log.Warn().Err(err).Msg("Kafka writer close failed")
			}
		}()
		publishers = append(publishers, kafkaPub)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Publishing order events to Kafka")
	}

	if stores.Catalog != nil {
		reconciler := service.NewReconciler(
			database.New(stores.Orders),
			stores.Catalog,
			func(db database.DBTX) service.CatalogStore { return database.New(db) },
			service.ReconcilerConfig{
				Interval:    cfg.ReconcileInterval,
				Grace:       cfg.ReconcileGrace,
				LockTimeout: cfg.LockTimeout,
			},
		)
		go reconciler.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, stores, hub, publishers),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.StoreTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Bool("split_stores", cfg.SplitStores()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "counter-api").Logger()
}

// openStores connects the order pool and, in split mode, the catalog pool,
// running migrations first when enabled.
func openStores(ctx context.Context, cfg *config.Config) (router.Stores, func(), error) {
	catalogURL := cfg.DatabaseURL
	if cfg.SplitStores() {
		catalogURL = cfg.CatalogDatabaseURL
	}

	if cfg.MigrateOnStart {
		if err := database.Migrate(catalogURL, migrations.Catalog, "catalog", "schema_migrations_catalog"); err != nil {
			return router.Stores{}, nil, err
		}
		if err := database.Migrate(cfg.DatabaseURL, migrations.Orders, "orders", "schema_migrations_orders"); err != nil {
			return router.Stores{}, nil, err
		}
	}

	poolCfg := database.PoolConfig{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.MaxConns,
		AcquireTimeout: cfg.StoreTimeout,
	}
	orders, err := database.NewPool(ctx, poolCfg)
	if err != nil {
		return router.Stores{}, nil, err
	}
	stores := router.Stores{Orders: orders}
	closers := []*pgxpool.Pool{orders}

	if cfg.SplitStores() {
		poolCfg.URL = cfg.CatalogDatabaseURL
		catalog, err := database.NewPool(ctx, poolCfg)
		if err != nil {
			orders.Close()
			return router.Stores{}, nil, err
		}
		stores.Catalog = catalog
		closers = append(closers, catalog)
	}

	return stores, func() {
		for _, p := range closers {
			p.Close()
		}
	}, nil
}
