// Package coverage aggregates lifecycle and excursion state into
// operator-facing health metrics. It performs no writes and is
// advisory, not authoritative.
package coverage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// DefaultRecentWindow is the trailing window for recentlyUpdated.
const DefaultRecentWindow = 5 * time.Minute

// Health labels derived from the orphaned percentage.
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
)

// Report is one coverage snapshot.
type Report struct {
	Symbol           string    `json:"symbol,omitempty"`
	GeneratedAt      time.Time `json:"generatedAt"`
	TotalActive      int       `json:"totalActive"`
	EverUpdated      int       `json:"everUpdated"`
	RecentlyUpdated  int       `json:"recentlyUpdated"`
	Orphaned         int       `json:"orphaned"`
	MissingEntryData int       `json:"missingEntryData"`
	NoMae            int       `json:"noMae"`
	TotalExited      int       `json:"totalExited"`
	Backfilled       int       `json:"backfilled"`
	OrphanedPct      float64   `json:"orphanedPct"`
	Health           string    `json:"health"`
}

// Monitor recomputes coverage on demand over current trade and
// excursion state.
type Monitor struct {
	events       storage.EventStore
	excursions   storage.ExcursionStore
	recentWindow time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

// MonitorOptions contains configuration for creating a Monitor.
type MonitorOptions struct {
	EventStore     storage.EventStore
	ExcursionStore storage.ExcursionStore
	RecentWindow   time.Duration
	Now            func() time.Time
	Logger         zerolog.Logger
}

// NewMonitor creates a coverage monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	window := opts.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		events:       opts.EventStore,
		excursions:   opts.ExcursionStore,
		recentWindow: window,
		now:          now,
		log:          opts.Logger.With().Str("component", "coverage").Logger(),
	}
}

// Snapshot aggregates current state for a symbol (all symbols when
// empty). Orphaned means: ACTIVE with an ENTRY but zero MFE on both
// policies, which signals a missed update pipeline upstream.
func (m *Monitor) Snapshot(ctx context.Context, symbol string) (*Report, error) {
	tradeIDs, err := m.events.ListTradeIDs(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("list trade ids: %w", err)
	}

	now := m.now().UTC()
	report := &Report{Symbol: symbol, GeneratedAt: now}
	cutoff := now.Add(-m.recentWindow).UnixMilli()

	for _, tradeID := range tradeIDs {
		events, err := m.events.GetByTradeID(ctx, tradeID)
		if err != nil {
			return nil, fmt.Errorf("load events for %s: %w", tradeID, err)
		}
		trade := domain.ProjectTrade(tradeID, events)
		if trade.Status == domain.StatusExited {
			report.TotalExited++
			if _, err := m.excursions.GetByTradeID(ctx, tradeID); err == nil {
				report.Backfilled++
			} else if !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("check backfill for %s: %w", tradeID, err)
			}
			continue
		}
		if trade.Status != domain.StatusActive {
			continue
		}

		report.TotalActive++

		updated := nonZero(trade.LiveNoBeMfe) || nonZero(trade.LiveBeMfe)
		if updated {
			report.EverUpdated++
			if trade.LastUpdateAt >= cutoff {
				report.RecentlyUpdated++
			}
			if !nonZero(trade.LiveMaeGlobalR) {
				report.NoMae++
			}
		}
		if trade.EntryPrice == nil || trade.StopLoss == nil {
			report.MissingEntryData++
		}
		if trade.HasEntry() && !updated {
			report.Orphaned++
		}
	}

	if report.TotalActive > 0 {
		report.OrphanedPct = 100 * float64(report.Orphaned) / float64(report.TotalActive)
	}
	report.Health = healthLabel(report.OrphanedPct)

	m.log.Debug().
		Int("total_active", report.TotalActive).
		Int("orphaned", report.Orphaned).
		Str("health", report.Health).
		Msg("coverage snapshot")

	return report, nil
}

// healthLabel maps orphaned percentage to the coarse health label.
func healthLabel(orphanedPct float64) string {
	switch {
	case orphanedPct < 5:
		return HealthExcellent
	case orphanedPct < 15:
		return HealthGood
	case orphanedPct < 30:
		return HealthFair
	default:
		return HealthPoor
	}
}

func nonZero(v *float64) bool {
	return v != nil && *v != 0
}
