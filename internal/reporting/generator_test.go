package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/storage/memory"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := util.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", s, err)
	}
	return d
}

func mustTrade(t *testing.T, open, expiry string, call, put float64) *models.Trade {
	t.Helper()
	trade, err := models.NewTrade(day(t, open), day(t, expiry), 400, 400.5, call, put)
	if err != nil {
		t.Fatalf("NewTrade(): %v", err)
	}
	return trade
}

func mustClose(t *testing.T, trade *models.Trade, to models.TradeStatus, reason, date string, underlying, call, put float64) {
	t.Helper()
	if err := trade.Close(to, reason, day(t, date), underlying, call, put); err != nil {
		t.Fatalf("Close(%s): %v", reason, err)
	}
}

// setupLedger seeds one of everything: a profit-take win, a stop-loss loss,
// an expiry win, an invalid close, and a trade still open.
func setupLedger(t *testing.T) *memory.TradeStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewTradeStore()

	create := func(trade *models.Trade) *models.Trade {
		if err := store.CreateTrade(ctx, trade); err != nil {
			t.Fatalf("CreateTrade(): %v", err)
		}
		return trade
	}
	closeAs := func(trade *models.Trade, to models.TradeStatus, reason, date string, u, c, p float64) {
		mustClose(t, trade, to, reason, date, u, c, p)
		if err := store.CloseTrade(ctx, trade); err != nil {
			t.Fatalf("CloseTrade(): %v", err)
		}
	}

	win := create(mustTrade(t, "2023-01-02", "2023-02-03", 5, 5))
	closeAs(win, models.StatusClosed, models.ReasonProfitTake, "2023-01-10", 402, 2, 2) // +6

	loss := create(mustTrade(t, "2023-01-03", "2023-02-03", 4, 4))
	closeAs(loss, models.StatusClosed, models.ReasonStopLoss, "2023-01-20", 430, 10, 8) // -10

	expired := create(mustTrade(t, "2023-01-04", "2023-02-03", 3, 3))
	closeAs(expired, models.StatusExpired, models.ReasonExpired, "2023-02-03", 405, 1, 0.5) // +4.5

	invalid := create(mustTrade(t, "2023-01-05", "2023-02-03", 2, 2))
	closeAs(invalid, models.StatusExpired, models.ReasonInvalidClose, "2023-02-03", 0, 0, 0)

	create(mustTrade(t, "2023-01-06", "2023-02-17", 5, 4))
	return store
}

func TestGenerate(t *testing.T) {
	store := setupLedger(t)
	fixed := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(store).WithClock(func() time.Time { return fixed })

	report, err := gen.Generate(context.Background(), 30)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want injected clock %v", report.GeneratedAt, fixed)
	}
	if report.TotalTrades != 5 || report.ClosedTrades != 4 || report.OpenTrades != 1 {
		t.Errorf("totals = %d/%d/%d, want 5/4/1",
			report.TotalTrades, report.ClosedTrades, report.OpenTrades)
	}
	if report.InvalidCloses != 1 {
		t.Errorf("InvalidCloses = %d, want 1", report.InvalidCloses)
	}
	if report.Wins != 2 || report.Losses != 1 {
		t.Errorf("wins/losses = %d/%d, want 2/1", report.Wins, report.Losses)
	}
	if math.Abs(report.WinRatePct-200.0/3) > 1e-9 {
		t.Errorf("WinRatePct = %v, want 66.67", report.WinRatePct)
	}
	if math.Abs(report.NetPremiumPnL-0.5) > 1e-9 {
		t.Errorf("NetPremiumPnL = %v, want 0.5", report.NetPremiumPnL)
	}
	if math.Abs(report.AveragePnL-0.5/3) > 1e-9 {
		t.Errorf("AveragePnL = %v, want 0.1667", report.AveragePnL)
	}

	wantReasons := []ReasonCount{
		{models.ReasonInvalidClose, 1},
		{models.ReasonExpired, 1},
		{models.ReasonProfitTake, 1},
		{models.ReasonStopLoss, 1},
	}
	if len(report.ClosedByReason) != len(wantReasons) {
		t.Fatalf("ClosedByReason = %v, want 4 reasons", report.ClosedByReason)
	}
	for i, want := range wantReasons {
		if report.ClosedByReason[i] != want {
			t.Errorf("ClosedByReason[%d] = %v, want %v", i, report.ClosedByReason[i], want)
		}
	}

	if got := util.FormatDay(report.FirstOpenDate); got != "2023-01-02" {
		t.Errorf("FirstOpenDate = %s, want 2023-01-02", got)
	}
	if got := util.FormatDay(report.LastCloseDate); got != "2023-02-03" {
		t.Errorf("LastCloseDate = %s, want 2023-02-03", got)
	}
}

func TestGenerate_EmptyLedger(t *testing.T) {
	gen := NewGenerator(memory.NewTradeStore())
	report, err := gen.Generate(context.Background(), 45)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if report.TotalTrades != 0 || report.WinRatePct != 0 {
		t.Errorf("empty ledger report = %+v, want zeros", report)
	}
}

func TestRenderCSV(t *testing.T) {
	closed := mustTrade(t, "2023-01-02", "2023-02-03", 5, 5)
	mustClose(t, closed, models.StatusClosed, models.ReasonProfitTake, "2023-01-10", 402, 2, 2)
	open := mustTrade(t, "2023-01-06", "2023-02-17", 5, 4)
	invalid := mustTrade(t, "2023-01-05", "2023-02-03", 2, 2)
	mustClose(t, invalid, models.StatusExpired, models.ReasonInvalidClose, "2023-02-03", 0, 0, 0)

	out := RenderCSV([]*models.Trade{closed, open, invalid})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3 rows", len(lines))
	}

	if !strings.HasPrefix(lines[0], "trade_id,status,open_date") {
		t.Errorf("header = %q", lines[0])
	}
	wantCols := strings.Count(lines[0], ",")
	for i, line := range lines[1:] {
		if got := strings.Count(line, ","); got != wantCols {
			t.Errorf("row %d has %d commas, want %d: %q", i+1, got, wantCols, line)
		}
	}

	if !strings.Contains(lines[1], "2023-01-10,Profit Take,402.00,2.0000,2.0000,4.0000,6.0000") {
		t.Errorf("closed row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",,,,,,") {
		t.Errorf("open row should have empty close columns: %q", lines[2])
	}
	if !strings.Contains(lines[3], "Invalid Close,,,,0.0000,") {
		t.Errorf("invalid close row should carry no prices or pnl: %q", lines[3])
	}
}

func TestRenderMarkdown(t *testing.T) {
	report := &Report{
		GeneratedAt:   time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
		DTETarget:     30,
		TotalTrades:   5,
		ClosedTrades:  4,
		OpenTrades:    1,
		InvalidCloses: 1,
		Wins:          2,
		Losses:        1,
		WinRatePct:    66.7,
		NetPremiumPnL: 0.5,
		AveragePnL:    0.1667,
		ClosedByReason: []ReasonCount{
			{models.ReasonProfitTake, 1},
			{models.ReasonStopLoss, 1},
		},
		FirstOpenDate: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		LastCloseDate: time.Date(2023, 2, 3, 0, 0, 0, 0, time.UTC),
	}

	out := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest Ledger Report",
		"DTE target: 30",
		"| Total Trades | 5 |",
		"| Profit Take | 1 |",
		"| Win Rate | 66.7% |",
		"| Net Premium P/L | 0.5000 |",
		"| First Open | 2023-01-02 |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderMarkdown() missing %q", want)
		}
	}
}
