// Package main operates corpus runs: build, lock, list and compare.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/config"
	"trade-signal-lab/internal/corpus"
	"trade-signal-lab/internal/domain"
	chstore "trade-signal-lab/internal/storage/clickhouse"
	"trade-signal-lab/internal/storage/migrations"
	pgstore "trade-signal-lab/internal/storage/postgres"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: corpus <command> [flags]

commands:
  build    -symbol SYM -start MS -end MS    materialize a run and evaluate gates
  lock     -run ID                          freeze a COMPLETE run as baseline
  list     [-symbol SYM]                    list runs
  compare  -a RUN -b RUN [-max N]           compare two runs row-by-row`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", ".", "directory containing config.yaml")
	symbol := fs.String("symbol", "", "symbol")
	start := fs.Int64("start", 0, "window start, unix ms")
	end := fs.Int64("end", 0, "window end, unix ms")
	runID := fs.String("run", "", "run id")
	runA := fs.String("a", "", "baseline run id")
	runB := fs.String("b", "", "candidate run id")
	maxMismatches := fs.Int("max", 20, "max mismatches to report")
	fs.Parse(os.Args[2:])

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()
	service, cleanup, err := openService(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open service")
	}
	defer cleanup()

	switch command {
	case "build":
		if *symbol == "" || *start == 0 || *end == 0 {
			usage()
		}
		result, err := service.BuildRun(ctx, *symbol, *start, *end)
		if err != nil && !errors.Is(err, domain.ErrGateFailure) {
			log.Fatal().Err(err).Msg("build run")
		}
		printJSON(result)
		if err != nil {
			os.Exit(1)
		}
	case "lock":
		if *runID == "" {
			usage()
		}
		if err := service.LockRun(ctx, *runID); err != nil {
			log.Fatal().Err(err).Msg("lock run")
		}
	case "list":
		runs, err := service.ListRuns(ctx, *symbol)
		if err != nil {
			log.Fatal().Err(err).Msg("list runs")
		}
		printJSON(runs)
	case "compare":
		if *runA == "" || *runB == "" {
			usage()
		}
		cmp, err := service.CompareRuns(ctx, *runA, *runB, *maxMismatches)
		if err != nil {
			log.Fatal().Err(err).Msg("compare runs")
		}
		printJSON(cmp)
		if !cmp.Identical {
			os.Exit(1)
		}
	default:
		usage()
	}
}

func openService(ctx context.Context, cfg config.Config, log zerolog.Logger) (*corpus.Service, func(), error) {
	pool, err := pgstore.NewPool(ctx, fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port,
		cfg.Postgres.DBName, cfg.Postgres.SSLMode))
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		cfg.ClickHouse.User, cfg.ClickHouse.Password, cfg.ClickHouse.Addr, cfg.ClickHouse.Database))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	service := corpus.NewService(corpus.ServiceOptions{
		BarStore:     chstore.NewBarStore(conn),
		BiasStore:    chstore.NewBiasStore(conn),
		CorpusStore:  pgstore.NewCorpusStore(pool),
		Interval:     cfg.Engine.BarInterval,
		LogicVersion: cfg.Engine.LogicVersion,
		Logger:       log,
	})
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return service, cleanup, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
