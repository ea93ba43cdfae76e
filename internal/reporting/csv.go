package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders excursion rows as CSV string.
func RenderCSV(rows []ExcursionRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,symbol,direction,no_be_mfe_r,be_mfe_r,mae_global_r,be_triggered,bars_replayed,computed_at\n")

	// Rows
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.6f,%.6f,%.6f,%t,%d,%s\n",
			row.TradeID,
			row.Symbol,
			row.Direction,
			row.NoBeMfeR,
			row.BeMfeR,
			row.MaeGlobalR,
			row.BeTriggered,
			row.BarsReplayed,
			row.ComputedAt.Format(time.RFC3339),
		))
	}

	return sb.String()
}
