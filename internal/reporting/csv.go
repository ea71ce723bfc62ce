package reporting

import (
	"fmt"
	"strings"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// RenderCSV renders the trade ledger as a CSV string, one row per trade.
// Close columns are empty for OPEN trades and for invalid closes' prices.
func RenderCSV(trades []*models.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,status,open_date,expiration,dte,strike,open_underlying,open_call,open_put,premium_captured,")
	sb.WriteString("close_date,close_reason,close_underlying,close_call,close_put,closing_premium,realized_pnl\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.2f,%.2f,%.2f,%.4f,%.4f,%.4f,",
			t.ID,
			t.Status,
			util.FormatDay(t.OpenDate),
			util.FormatDay(t.Expiration),
			t.OpenDTE,
			t.Strike,
			t.OpenUnderlying,
			t.OpenCallPrice,
			t.OpenPutPrice,
			t.PremiumCaptured,
		))

		if t.IsOpen() {
			sb.WriteString(",,,,,,\n")
			continue
		}

		pnl := ""
		prices := ",,,"
		if t.CloseReason != models.ReasonInvalidClose {
			pnl = fmt.Sprintf("%.4f", t.RealizedPnL())
			prices = fmt.Sprintf("%.2f,%.4f,%.4f,", t.CloseUnderlying, t.CloseCallPrice, t.ClosePutPrice)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s%.4f,%s\n",
			util.FormatDay(t.CloseDate),
			t.CloseReason,
			prices,
			t.ClosingPremium,
			pnl,
		))
	}

	return sb.String()
}
