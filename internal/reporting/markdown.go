package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Ledger Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("DTE target: %g\n\n", r.DTETarget))

	// Ledger Summary
	sb.WriteString("## Ledger Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Closed Trades | %d |\n", r.ClosedTrades))
	sb.WriteString(fmt.Sprintf("| Open Trades | %d |\n", r.OpenTrades))
	sb.WriteString(fmt.Sprintf("| Invalid Closes | %d |\n", r.InvalidCloses))
	if !r.FirstOpenDate.IsZero() {
		sb.WriteString(fmt.Sprintf("| First Open | %s |\n", util.FormatDay(r.FirstOpenDate)))
	}
	if !r.LastCloseDate.IsZero() {
		sb.WriteString(fmt.Sprintf("| Last Close | %s |\n", util.FormatDay(r.LastCloseDate)))
	}
	sb.WriteString("\n")

	// Close Reasons
	sb.WriteString("## Closes by Reason\n\n")
	if len(r.ClosedByReason) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, rc := range r.ClosedByReason {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", rc.Reason, rc.Count))
		}
	} else {
		sb.WriteString("No trades closed.\n")
	}
	sb.WriteString("\n")

	// Outcomes
	sb.WriteString("## Outcomes (priced closes)\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", r.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", r.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.1f%% |\n", r.WinRatePct))
	sb.WriteString(fmt.Sprintf("| Net Premium P/L | %.4f |\n", r.NetPremiumPnL))
	sb.WriteString(fmt.Sprintf("| Average P/L | %.4f |\n", r.AveragePnL))

	return sb.String()
}
