// Package corpus serves point-in-time and range reads over the bar
// store and derived bias rows, and guards them with determinism,
// alignment and coverage gates.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/contenthash"
	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// Include selects which columns a historical read materializes.
type Include struct {
	OHLCV     bool
	Bias      bool
	Triangles bool
}

// IncludeAll selects everything.
var IncludeAll = Include{OHLCV: true, Bias: true, Triangles: true}

// Triangle is a signal marker drawn at a bar: the charting tool's
// entry-setup triangles, reconstructed from SIGNAL_CREATED events.
type Triangle struct {
	Ts        int64            `json:"ts"`
	Direction domain.Direction `json:"direction"`
	TradeID   string           `json:"tradeId"`
}

// PointInTimeResult is one bar plus the bias stack current as of the
// queried instant.
type PointInTimeResult struct {
	Symbol    string                      `json:"symbol"`
	Instant   int64                       `json:"instant"`
	Bar       *domain.Bar                 `json:"bar,omitempty"`
	Bias      map[string]domain.Direction `json:"bias,omitempty"`
	Triangles []Triangle                  `json:"triangles,omitempty"`
}

// RangeResult is the materialization of a bar window.
type RangeResult struct {
	Symbol    string                `json:"symbol"`
	StartTs   int64                 `json:"startTs"`
	EndTs     int64                 `json:"endTs"`
	RowCount  int                   `json:"rowCount"`
	Rows      []*domain.SnapshotRow `json:"rows"`
	Triangles []Triangle            `json:"triangles,omitempty"`
}

// Service answers historical queries. Reads are pure against immutable
// data; any number of concurrent readers is safe.
type Service struct {
	bars         storage.BarStore
	bias         storage.BiasStore
	corpus       storage.CorpusStore
	interval     time.Duration
	logicVersion string
	log          zerolog.Logger
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	BarStore     storage.BarStore
	BiasStore    storage.BiasStore
	CorpusStore  storage.CorpusStore
	Interval     time.Duration
	LogicVersion string
	Logger       zerolog.Logger
}

// NewService creates a historical query service.
func NewService(opts ServiceOptions) *Service {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		bars:         opts.BarStore,
		bias:         opts.BiasStore,
		corpus:       opts.CorpusStore,
		interval:     interval,
		logicVersion: opts.LogicVersion,
		log:          opts.Logger.With().Str("component", "corpus").Logger(),
	}
}

// Interval returns the configured bar interval.
func (s *Service) Interval() time.Duration {
	return s.interval
}

// PointInTime returns the bar covering instant plus the multi-timeframe
// bias stack current as of that instant. A missing bar is an
// UpstreamDataGapError, never a fabricated price.
func (s *Service) PointInTime(ctx context.Context, symbol string, instant int64, include Include) (*PointInTimeResult, error) {
	ts := domain.FloorToInterval(instant, s.interval)
	result := &PointInTimeResult{Symbol: symbol, Instant: instant}

	if include.OHLCV {
		bar, err := s.bars.GetByTs(ctx, symbol, ts)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, &domain.UpstreamDataGapError{
					Symbol: symbol, StartTs: ts, EndTs: ts, Missing: 1,
				}
			}
			return nil, fmt.Errorf("load bar: %w", err)
		}
		result.Bar = bar
	}

	if include.Bias {
		stack, err := s.biasStack(ctx, symbol, instant)
		if err != nil {
			return nil, err
		}
		result.Bias = stack
	}

	if include.Triangles {
		triangles, err := s.triangles(ctx, symbol, ts, ts)
		if err != nil {
			return nil, err
		}
		result.Triangles = triangles
	}

	return result, nil
}

// Range returns one snapshot row per bar in [start, end]. The row count
// equals the bar count for the window; the coverage gate decides
// whether that count is complete.
func (s *Service) Range(ctx context.Context, symbol string, start, end int64, include Include) (*RangeResult, error) {
	start = domain.FloorToInterval(start, s.interval)
	end = domain.FloorToInterval(end, s.interval)
	if end < start {
		return nil, fmt.Errorf("%w: range end before start", storage.ErrInvalidInput)
	}

	bars, err := s.bars.GetByTimeRange(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}

	result := &RangeResult{Symbol: symbol, StartTs: start, EndTs: end}
	for _, bar := range bars {
		row := &domain.SnapshotRow{
			Symbol: symbol,
			Ts:     bar.Ts,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		if include.Bias {
			stack, err := s.biasStack(ctx, symbol, bar.Ts)
			if err != nil {
				return nil, err
			}
			row.Bias = stack
		}
		row.RowHash = contenthash.RowHash(row)
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)

	if include.Triangles {
		triangles, err := s.triangles(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		result.Triangles = triangles
	}

	return result, nil
}

// biasStack resolves the latest bias at-or-before ts for every
// timeframe. Timeframes with no preceding signal are simply absent.
func (s *Service) biasStack(ctx context.Context, symbol string, ts int64) (map[string]domain.Direction, error) {
	stack := make(map[string]domain.Direction, len(domain.BiasTimeframes))
	for _, tf := range domain.BiasTimeframes {
		row, err := s.bias.LatestAtOrBefore(ctx, symbol, tf, ts)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load bias %s/%s: %w", symbol, tf, err)
		}
		stack[tf] = row.Bias
	}
	return stack, nil
}

// triangles lists signal markers within [start, end] at the base
// timeframe.
func (s *Service) triangles(ctx context.Context, symbol string, start, end int64) ([]Triangle, error) {
	rows, err := s.bias.GetByTimeRange(ctx, symbol, domain.Timeframe1m, start, end)
	if err != nil {
		return nil, fmt.Errorf("load signal markers: %w", err)
	}
	triangles := make([]Triangle, 0, len(rows))
	for _, row := range rows {
		triangles = append(triangles, Triangle{Ts: row.Ts, Direction: row.Bias, TradeID: row.TradeID})
	}
	return triangles, nil
}
