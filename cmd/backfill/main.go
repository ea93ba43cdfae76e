// Package main runs a one-shot excursion backfill pass.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/config"
	"trade-signal-lab/internal/excursion"
	chstore "trade-signal-lab/internal/storage/clickhouse"
	"trade-signal-lab/internal/storage/migrations"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	force := flag.Bool("force", false, "recompute trades that already have results")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port,
		cfg.Postgres.DBName, cfg.Postgres.SSLMode))
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("run postgres migrations")
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		cfg.ClickHouse.User, cfg.ClickHouse.Password, cfg.ClickHouse.Addr, cfg.ClickHouse.Database))
	if err != nil {
		log.Fatal().Err(err).Msg("connect clickhouse")
	}
	defer conn.Close()

	runner := excursion.NewRunner(excursion.RunnerOptions{
		EventStore:     pgstore.NewEventStore(pool),
		BarStore:       chstore.NewBarStore(conn),
		ExcursionStore: pgstore.NewExcursionStore(pool),
		Logger:         log,
	})

	report, err := runner.Run(ctx, *force)
	if err != nil {
		log.Fatal().Err(err).Msg("backfill failed")
	}

	ev := log.Info().
		Int("seen", report.TradesSeen).
		Int("computed", report.Computed).
		Int("up_to_date", report.UpToDate).
		Int("errors", report.Errors)
	for reason, n := range report.Skipped {
		ev = ev.Int("skipped_"+string(reason), n)
	}
	ev.Msg("backfill complete")

	if report.Errors > 0 {
		os.Exit(1)
	}
}
