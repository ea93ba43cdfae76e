package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// SummaryRow is one trade in a lifecycle summary: the derived
// projection left-joined with its excursion metrics.
type SummaryRow struct {
	Trade *domain.Trade

	// Excursion metrics and their provenance. MetricsSource is
	// "backfill" when a computed ExcursionResult exists, otherwise
	// "live_stream" when MFE_UPDATE events supplied metrics.
	NoBeMfeR      *float64
	BeMfeR        *float64
	MaeGlobalR    *float64
	BeTriggered   *bool
	MetricsSource string
}

// SummaryPage is a paginated lifecycle summary.
type SummaryPage struct {
	Rows   []*SummaryRow
	Total  int // total trades matching the filter, pre-pagination
	Limit  int
	Offset int
}

// SummaryQuery filters and paginates a lifecycle summary.
type SummaryQuery struct {
	Symbol       string
	StatusFilter domain.TradeStatus // empty means all statuses
	Limit        int
	Offset       int
}

// Summary returns trades for a symbol with derived status and joined
// excursion metrics, ordered by most recent event DESC.
func (s *Store) Summary(ctx context.Context, excursions storage.ExcursionStore, q SummaryQuery) (*SummaryPage, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	tradeIDs, err := s.events.ListTradeIDs(ctx, q.Symbol)
	if err != nil {
		return nil, fmt.Errorf("list trade ids: %w", err)
	}

	var matched []*SummaryRow
	for _, id := range tradeIDs {
		events, err := s.events.GetByTradeID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load events for %s: %w", id, err)
		}
		trade := domain.ProjectTrade(id, events)
		if q.StatusFilter != "" && trade.Status != q.StatusFilter {
			continue
		}
		matched = append(matched, s.buildRow(ctx, excursions, trade))
	}

	page := &SummaryPage{Total: len(matched), Limit: q.Limit, Offset: q.Offset}
	if q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Rows = matched[q.Offset:end]
	}
	return page, nil
}

// buildRow joins one trade with its excursion metrics, preferring the
// backfill computation over streamed values.
func (s *Store) buildRow(ctx context.Context, excursions storage.ExcursionStore, trade *domain.Trade) *SummaryRow {
	row := &SummaryRow{Trade: trade}

	if excursions != nil {
		res, err := excursions.GetByTradeID(ctx, trade.TradeID)
		switch {
		case err == nil:
			row.NoBeMfeR = &res.NoBeMfeR
			row.BeMfeR = &res.BeMfeR
			row.MaeGlobalR = &res.MaeGlobalR
			row.BeTriggered = &res.BeTriggered
			row.MetricsSource = domain.MetricsSourceBackfill
			return row
		case !errors.Is(err, storage.ErrNotFound):
			s.log.Warn().Err(err).Str("trade_id", trade.TradeID).
				Msg("excursion lookup failed, falling back to streamed metrics")
		}
	}

	if trade.LastUpdateAt != 0 {
		row.NoBeMfeR = trade.LiveNoBeMfe
		row.BeMfeR = trade.LiveBeMfe
		row.MaeGlobalR = trade.LiveMaeGlobalR
		row.MetricsSource = domain.MetricsSourceLiveStream
	}
	return row
}
