package normalize

import (
	"strings"

	"trade-signal-lab/internal/domain"
)

// NormalizeDirection maps the source's direction vocabulary onto the
// canonical Bullish/Bearish pair. When the payload carries no usable
// direction it falls back to the trade id suffix convention; an empty
// result means carry-forward from the trade's prior events.
func NormalizeDirection(raw, tradeID string) domain.Direction {
	if d := mapDirection(raw); d.Valid() {
		return d
	}
	return directionFromTradeID(tradeID)
}

// mapDirection handles the explicit direction field.
func mapDirection(raw string) domain.Direction {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case upper == "":
		return ""
	case upper == "LONG", upper == "BULLISH", strings.HasSuffix(upper, "_BULLISH"):
		return domain.DirectionBullish
	case upper == "SHORT", upper == "BEARISH", strings.HasSuffix(upper, "_BEARISH"):
		return domain.DirectionBearish
	}
	return ""
}

// directionFromTradeID applies the trailing-suffix convention some
// indicators use when building trade ids.
func directionFromTradeID(tradeID string) domain.Direction {
	upper := strings.ToUpper(tradeID)
	switch {
	case strings.HasSuffix(upper, "_BULLISH"):
		return domain.DirectionBullish
	case strings.HasSuffix(upper, "_BEARISH"):
		return domain.DirectionBearish
	}
	return ""
}
