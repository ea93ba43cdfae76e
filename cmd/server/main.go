// Package main runs the unified service: webhook and relay ingestion,
// the scheduled background jobs, and the read API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/config"
	"trade-signal-lab/internal/corpus"
	"trade-signal-lab/internal/coverage"
	"trade-signal-lab/internal/excursion"
	"trade-signal-lab/internal/inference"
	"trade-signal-lab/internal/ingestion"
	"trade-signal-lab/internal/lifecycle"
	"trade-signal-lab/internal/normalize"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/scheduler"
	"trade-signal-lab/internal/server"
	"trade-signal-lab/internal/storage"
	chstore "trade-signal-lab/internal/storage/clickhouse"
	"trade-signal-lab/internal/storage/memory"
	"trade-signal-lab/internal/storage/migrations"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

// stores bundles every storage backend the service needs.
type stores struct {
	events     storage.EventStore
	bars       storage.BarStore
	bias       storage.BiasStore
	excursions storage.ExcursionStore
	corpus     storage.CorpusStore

	cleanup func()
}

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	useMemory := flag.Bool("use-memory", false, "use in-memory storage instead of postgres/clickhouse")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer st.cleanup()

	metrics := observability.NewMetrics("")

	// Write path.
	lifecycleStore := lifecycle.NewStore(st.events, log)
	normalizer := normalize.New(cfg.Engine.BarInterval)
	ingestor := ingestion.NewIngestor(normalizer, lifecycleStore, metrics, log)
	webhook := ingestion.NewWebhookHandler(ingestor, cfg.Webhook.RatePerSec, cfg.Webhook.Burst, metrics, log)

	// Engines.
	inferenceEngine := inference.NewEngine(st.events, lifecycleStore, log)
	backfillRunner := excursion.NewRunner(excursion.RunnerOptions{
		EventStore:     st.events,
		BarStore:       st.bars,
		ExcursionStore: st.excursions,
		Logger:         log,
	})
	monitor := coverage.NewMonitor(coverage.MonitorOptions{
		EventStore:     st.events,
		ExcursionStore: st.excursions,
		RecentWindow:   cfg.Engine.RecentWindow,
		Logger:         log,
	})
	corpusService := corpus.NewService(corpus.ServiceOptions{
		BarStore:     st.bars,
		BiasStore:    st.bias,
		CorpusStore:  st.corpus,
		Interval:     cfg.Engine.BarInterval,
		LogicVersion: cfg.Engine.LogicVersion,
		Logger:       log,
	})
	biasDeriver := corpus.NewBiasDeriver(st.events, st.bias, log)

	// Background jobs.
	sched := scheduler.New(log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Jobs.Inference, scheduler.NewInferenceJob(inferenceEngine, metrics, 5*time.Minute, log)},
		{cfg.Jobs.Backfill, scheduler.NewBackfillJob(backfillRunner, metrics, 30*time.Minute, log)},
		{cfg.Jobs.Coverage, scheduler.NewCoverageJob(monitor, metrics, time.Minute, log)},
		{cfg.Jobs.Bias, scheduler.NewBiasJob(biasDeriver, 5*time.Minute, log)},
	}
	for _, j := range jobs {
		if j.schedule == "" {
			continue
		}
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("register job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// Relay stream.
	if cfg.Relay.Enabled && cfg.Relay.Endpoint != "" {
		wsSource := ingestion.NewWSSource(cfg.Relay.Endpoint, nil, ingestor, log)
		go func() {
			if err := wsSource.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("relay stream stopped")
			}
		}()
	}

	// HTTP front.
	srv := server.New(server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Lifecycle:    lifecycleStore,
		Excursions:   st.excursions,
		Corpus:       corpusService,
		Coverage:     monitor,
		Webhook:      webhook,
		Metrics:      metrics,
		Logger:       log,
	})
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Wait for shutdown signal.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

// openStores builds the storage backends, running migrations for the
// database-backed pair.
func openStores(ctx context.Context, cfg config.Config, useMemory bool) (*stores, error) {
	if useMemory {
		return &stores{
			events:     memory.NewEventStore(),
			bars:       memory.NewBarStore(),
			bias:       memory.NewBiasStore(),
			excursions: memory.NewExcursionStore(),
			corpus:     memory.NewCorpusStore(),
			cleanup:    func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN(cfg.Postgres))
	if err != nil {
		return nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN(cfg.ClickHouse))
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		events:     pgstore.NewEventStore(pool),
		bars:       chstore.NewBarStore(conn),
		bias:       chstore.NewBiasStore(conn),
		excursions: pgstore.NewExcursionStore(pool),
		corpus:     pgstore.NewCorpusStore(pool),
		cleanup: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

func postgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)
}

func clickhouseDSN(cfg config.ClickHouseConfig) string {
	return fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		cfg.User, cfg.Password, cfg.Addr, cfg.Database)
}
