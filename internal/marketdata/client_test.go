package marketdata

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const sampleCSV = `Date,Open,High,Low,Close,Volume
2023-01-03,384.37,386.43,377.83,380.82,74850700
2023-01-04,383.18,385.88,380.00,383.76,85934100
2023-01-05,381.72,381.84,378.76,379.38,76970500
`

// fastRetry keeps test retries effectively instant.
var fastRetry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)

	c, err := NewClient(s.URL, log.New(io.Discard, "", 0), fastRetry)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c.WithHTTPClient(s.Client()), s
}

func TestDailyBars(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("s"); got != "spy.us" {
			t.Errorf("symbol query = %q, want spy.us (lowercased)", got)
		}
		if got := r.URL.Query().Get("i"); got != "d" {
			t.Errorf("interval query = %q, want d", got)
		}
		_, _ = w.Write([]byte(sampleCSV))
	})

	bars, err := client.DailyBars(context.Background(), "SPY.US")
	if err != nil {
		t.Fatalf("DailyBars() error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("len(bars) = %d, want 3", len(bars))
	}

	first := bars[0]
	if first.Symbol != "SPY.US" {
		t.Errorf("Symbol = %q, want SPY.US", first.Symbol)
	}
	if got := first.Date.Format("2006-01-02"); got != "2023-01-03" {
		t.Errorf("Date = %s, want 2023-01-03", got)
	}
	if first.Close != 380.82 {
		t.Errorf("Close = %v, want 380.82", first.Close)
	}
	if first.Volume != 74850700 {
		t.Errorf("Volume = %d, want 74850700", first.Volume)
	}
}

func TestDailyBars_HeaderMappedByName(t *testing.T) {
	// Columns shuffled and cased differently; volume absent entirely.
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("CLOSE,date,LOW,High,open\n22.90,2023-01-03,21.88,23.05,21.97\n"))
	})

	bars, err := client.DailyBars(context.Background(), "^vix")
	if err != nil {
		t.Fatalf("DailyBars() error: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("len(bars) = %d, want 1", len(bars))
	}
	if bars[0].Close != 22.90 || bars[0].Volume != 0 {
		t.Errorf("bar = close %v volume %d, want 22.90/0", bars[0].Close, bars[0].Volume)
	}
}

func TestDailyBars_SkipsMalformedRows(t *testing.T) {
	body := "Date,Open,High,Low,Close,Volume\n" +
		"2023-01-03,384.37,386.43,377.83,380.82,74850700\n" +
		"2023-01-04,N/D,N/D,N/D,N/D,0\n" + // placeholder row
		"not-a-date,1,2,3,4,5\n" +
		"2023-01-05,381.72,381.84,378.76,379.38,76970500\n"
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	bars, err := client.DailyBars(context.Background(), "spy.us")
	if err != nil {
		t.Fatalf("DailyBars() error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2 (malformed rows skipped)", len(bars))
	}
}

func TestDailyBars_MissingHeaderColumn(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Date,Open,High,Low,Volume\n2023-01-03,1,2,3,4\n"))
	})

	_, err := client.DailyBars(context.Background(), "spy.us")
	if err == nil {
		t.Fatal("DailyBars() = nil error for CSV without a close column")
	}
}

func TestDailyBars_EmptyHistoryIsAnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Date,Open,High,Low,Close,Volume\n"))
	})

	_, err := client.DailyBars(context.Background(), "spy.us")
	if err == nil {
		t.Fatal("DailyBars() = nil error for a headers-only response")
	}
}

func TestDailyBars_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	})

	bars, err := client.DailyBars(context.Background(), "spy.us")
	if err != nil {
		t.Fatalf("DailyBars() error after retries: %v", err)
	}
	if len(bars) != 3 {
		t.Errorf("len(bars) = %d, want 3", len(bars))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3 (two 503s then success)", got)
	}
}

func TestDailyBars_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown symbol", http.StatusNotFound)
	})

	_, err := client.DailyBars(context.Background(), "nope")
	if err == nil {
		t.Fatal("DailyBars() = nil error for 404")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("error = %v, want APIError with status 404", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (404 is permanent)", got)
	}
}

func TestDailyBars_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})

	_, err := client.DailyBars(context.Background(), "spy.us")
	if err == nil {
		t.Fatal("DailyBars() = nil error after exhausting retries")
	}
	if got := calls.Load(); got != int32(fastRetry.MaxRetries+1) {
		t.Errorf("server calls = %d, want %d", got, fastRetry.MaxRetries+1)
	}
}

func TestDailyBars_CanceledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleCSV))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.DailyBars(ctx, "spy.us"); !errors.Is(err, context.Canceled) {
		t.Errorf("DailyBars() err = %v, want context.Canceled", err)
	}
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	for _, bad := range []string{"", "stooq.com", "://nope"} {
		if _, err := NewClient(bad, nil); err == nil {
			t.Errorf("NewClient(%q) = nil error", bad)
		}
	}
}
