package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BiasDeriver projects SIGNAL_CREATED events into the bias_rows table:
// one row per timeframe with the signal's direction, timestamped at the
// event's bar open floored to that timeframe. Re-runs are no-ops; the
// (symbol, timeframe, ts) key dedups.
type BiasDeriver struct {
	events storage.EventStore
	bias   storage.BiasStore
	log    zerolog.Logger
}

// NewBiasDeriver creates a bias deriver.
func NewBiasDeriver(events storage.EventStore, bias storage.BiasStore, log zerolog.Logger) *BiasDeriver {
	return &BiasDeriver{
		events: events,
		bias:   bias,
		log:    log.With().Str("component", "bias").Logger(),
	}
}

// DeriveAll projects signals for every symbol in the event log.
func (d *BiasDeriver) DeriveAll(ctx context.Context) (int, error) {
	symbols, err := d.events.ListSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("list symbols: %w", err)
	}

	total := 0
	for _, symbol := range symbols {
		n, err := d.DeriveSymbol(ctx, symbol)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// DeriveSymbol projects one symbol's signals. A signal without a usable
// direction is logged and skipped; the batch continues.
func (d *BiasDeriver) DeriveSymbol(ctx context.Context, symbol string) (int, error) {
	signals, err := d.events.GetBySymbolAndType(ctx, symbol, domain.EventSignalCreated)
	if err != nil {
		return 0, fmt.Errorf("load signals for %s: %w", symbol, err)
	}

	inserted := 0
	for _, signal := range signals {
		if !signal.Direction.Valid() {
			d.log.Warn().
				Str("trade_id", signal.TradeID).
				Str("symbol", symbol).
				Msg("signal without direction skipped")
			continue
		}
		for _, tf := range domain.BiasTimeframes {
			row := &domain.BiasRow{
				Symbol:    symbol,
				Timeframe: tf,
				Ts:        domain.FloorToInterval(signal.BarOpenTs, domain.TimeframeDuration[tf]),
				Bias:      signal.Direction,
				TradeID:   signal.TradeID,
			}
			if err := d.bias.Insert(ctx, row); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					continue
				}
				return inserted, fmt.Errorf("insert bias row: %w", err)
			}
			inserted++
		}
	}
	return inserted, nil
}
