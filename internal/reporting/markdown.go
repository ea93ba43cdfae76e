package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trade Signal Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Symbol != "" {
		sb.WriteString(fmt.Sprintf("Symbol: %s\n\n", r.Symbol))
	}

	// Lifecycle Summary
	sb.WriteString("## Lifecycle Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.Lifecycle.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Pending | %d |\n", r.Lifecycle.Pending))
	sb.WriteString(fmt.Sprintf("| Active | %d |\n", r.Lifecycle.Active))
	sb.WriteString(fmt.Sprintf("| Exited | %d |\n", r.Lifecycle.Exited))
	sb.WriteString(fmt.Sprintf("| Cancelled | %d |\n", r.Lifecycle.Cancelled))
	sb.WriteString(fmt.Sprintf("| Inferred Cancels | %d |\n", r.Lifecycle.InferredCancels))
	sb.WriteString(fmt.Sprintf("| Source Cancels | %d |\n", r.Lifecycle.SourceCancels))
	sb.WriteString("\n")

	// Coverage
	sb.WriteString("## Coverage\n\n")
	if r.Coverage != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Active Trades | %d |\n", r.Coverage.TotalActive))
		sb.WriteString(fmt.Sprintf("| Ever Updated | %d |\n", r.Coverage.EverUpdated))
		sb.WriteString(fmt.Sprintf("| Recently Updated | %d |\n", r.Coverage.RecentlyUpdated))
		sb.WriteString(fmt.Sprintf("| Orphaned | %d (%.1f%%) |\n", r.Coverage.Orphaned, r.Coverage.OrphanedPct))
		sb.WriteString(fmt.Sprintf("| Exited | %d |\n", r.Coverage.TotalExited))
		sb.WriteString(fmt.Sprintf("| Backfilled | %d |\n", r.Coverage.Backfilled))
		sb.WriteString(fmt.Sprintf("| Health | %s |\n", r.Coverage.Health))
	} else {
		sb.WriteString("No coverage snapshot available.\n")
	}
	sb.WriteString("\n")

	// Excursion Distribution
	sb.WriteString("## Excursion Distribution\n\n")
	if r.Excursions.TotalComputed > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Computed | %d |\n", r.Excursions.TotalComputed))
		sb.WriteString(fmt.Sprintf("| BE Trigger Rate | %.4f |\n", r.Excursions.BeTriggerRate))
		sb.WriteString(fmt.Sprintf("| No-BE MFE Mean (R) | %.4f |\n", r.Excursions.NoBeMfeMean))
		sb.WriteString(fmt.Sprintf("| No-BE MFE Median (R) | %.4f |\n", r.Excursions.NoBeMfeMedian))
		sb.WriteString(fmt.Sprintf("| No-BE MFE P10 (R) | %.4f |\n", r.Excursions.NoBeMfeP10))
		sb.WriteString(fmt.Sprintf("| No-BE MFE P90 (R) | %.4f |\n", r.Excursions.NoBeMfeP90))
		sb.WriteString(fmt.Sprintf("| MAE Mean (R) | %.4f |\n", r.Excursions.MaeMean))
		sb.WriteString(fmt.Sprintf("| MAE Median (R) | %.4f |\n", r.Excursions.MaeMedian))
	} else {
		sb.WriteString("No excursion results computed.\n")
	}
	sb.WriteString("\n")

	// Excursion Rows
	sb.WriteString("## Excursion Results\n\n")
	if len(r.ExcursionRows) > 0 {
		sb.WriteString("| Trade | Symbol | Direction | No-BE MFE (R) | BE MFE (R) | MAE (R) | BE | Bars |\n")
		sb.WriteString("|-------|--------|-----------|---------------|------------|---------|----|------|\n")
		for _, row := range r.ExcursionRows {
			be := "no"
			if row.BeTriggered {
				be = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %.4f | %.4f | %s | %d |\n",
				row.TradeID, row.Symbol, row.Direction,
				row.NoBeMfeR, row.BeMfeR, row.MaeGlobalR, be, row.BarsReplayed))
		}
	} else {
		sb.WriteString("No excursion results available.\n")
	}
	sb.WriteString("\n")

	// Corpus Runs
	sb.WriteString("## Corpus Runs\n\n")
	if len(r.CorpusRuns) > 0 {
		sb.WriteString("| Run | Symbol | Status | Rows | Logic | Fingerprint |\n")
		sb.WriteString("|-----|--------|--------|------|-------|-------------|\n")
		for _, run := range r.CorpusRuns {
			fp := run.Fingerprint
			if len(fp) > 12 {
				fp = fp[:12]
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s |\n",
				run.RunID, run.Symbol, run.Status, run.RowCount, run.LogicVersion, fp))
		}
	} else {
		sb.WriteString("No corpus runs recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
