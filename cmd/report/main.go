// Package main generates a markdown report and CSV export from stored
// lifecycle, excursion and corpus data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/config"
	"trade-signal-lab/internal/coverage"
	"trade-signal-lab/internal/reporting"
	"trade-signal-lab/internal/storage/migrations"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	symbol := flag.String("symbol", "", "restrict the report to one symbol")
	output := flag.String("output", "reports", "output directory")
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

	events := pgstore.NewEventStore(pool)
	excursions := pgstore.NewExcursionStore(pool)
	monitor := coverage.NewMonitor(coverage.MonitorOptions{
		EventStore:     events,
		ExcursionStore: excursions,
		RecentWindow:   cfg.Engine.RecentWindow,
		Logger:         log,
	})

	generator := reporting.NewGenerator(events, excursions, pgstore.NewCorpusStore(pool), monitor)

	report, err := generator.Generate(ctx, *symbol)
	if err != nil {
		log.Fatal().Err(err).Msg("generate report")
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output directory")
	}

	mdPath := filepath.Join(*output, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		log.Fatal().Err(err).Msg("write markdown report")
	}
	csvPath := filepath.Join(*output, "excursions.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.ExcursionRows)), 0o644); err != nil {
		log.Fatal().Err(err).Msg("write csv export")
	}

	log.Info().
		Str("markdown", mdPath).
		Str("csv", csvPath).
		Int("trades", report.Lifecycle.TotalTrades).
		Int("excursions", report.Excursions.TotalComputed).
		Msg("report written")
}
