// Package marketdata downloads daily OHLCV bar history from a CSV-over-HTTP
// endpoint (stooq-compatible layout). This is the only networked component
// of the toolchain, so it is also the only place that retries: bounded
// attempts with jittered exponential backoff on transient failures.
package marketdata

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

const defaultTimeout = 10 * time.Second

// RetryConfig bounds the fetch retry loop.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig is used when no RetryConfig is supplied.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
}

// APIError is a non-2xx response from the bar endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Body)
}

// Client fetches daily bars for one symbol at a time. Symbols are passed to
// the endpoint verbatim (lowercased), so callers supply the provider's code
// ("spy.us", "^vix").
type Client struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
	config  RetryConfig
}

// NewClient builds a bar client for a stooq-compatible base URL.
func NewClient(baseURL string, logger *log.Logger, config ...RetryConfig) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("marketdata: invalid base URL %q", baseURL)
	}
	if logger == nil {
		logger = log.Default()
	}

	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logger,
		config:  cfg,
	}, nil
}

// WithHTTPClient overrides the underlying HTTP client (timeouts, transport).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.client = h
	}
	return c
}

// DailyBars downloads the symbol's full daily history. The returned bars
// carry the uppercased symbol and day-truncated UTC dates, ready for
// storage.BarStore.InsertBars.
func (c *Client) DailyBars(ctx context.Context, symbol string) ([]*models.DailyBar, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("marketdata: symbol is required")
	}

	endpoint := fmt.Sprintf("%s/q/d/l/?s=%s&i=d", c.baseURL, url.QueryEscape(strings.ToLower(symbol)))

	body, err := c.fetch(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch %s bars: %w", symbol, err)
	}

	bars, err := c.parseCSV(symbol, body)
	if err != nil {
		return nil, fmt.Errorf("parse %s bars: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned for %s", symbol)
	}
	return bars, nil
}

// fetch performs the GET with bounded retries on transient failures.
func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch canceled: %w", err)
		}

		body, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isTransient(err) || attempt == c.config.MaxRetries {
			break
		}

		c.logger.Printf("Fetch attempt %d/%d failed (%v), retrying in %v",
			attempt+1, c.config.MaxRetries+1, err, backoff)
		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch canceled during backoff: %w", ctx.Err())
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "text/csv")
	req.Header.Add("User-Agent", "stamford-straddler/1.0 (+bars)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap to avoid huge payloads
		if readErr != nil {
			return nil, &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 32<<20)) // 32MB cap; decades of daily bars fit easily
}

// nextBackoff grows the delay 1.5x, capped, plus up to 25% random jitter.
func (c *Client) nextBackoff(current time.Duration) time.Duration {
	backoff := time.Duration(float64(current) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.Printf("Failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}
	return backoff
}

// isTransient reports whether the fetch error is worth another attempt:
// network-level failures and 429/5xx statuses are; other statuses are not.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	// Anything that never produced a status line (DNS, refused connection,
	// client timeout) is transient by nature.
	return true
}

// parseCSV maps a stooq-style header (Date,Open,High,Low,Close,Volume; any
// order, any case) and converts the rows. Malformed rows are skipped with a
// warning rather than failing a whole multi-year download.
func (c *Client) parseCSV(symbol string, data []byte) ([]*models.DailyBar, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("header missing %q column", required)
		}
	}

	upper := strings.ToUpper(symbol)
	var bars []*models.DailyBar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.logger.Printf("Warning: skipping unreadable row %d for %s: %v", line, symbol, err)
			continue
		}

		bar, err := barFromRecord(upper, record, cols)
		if err != nil {
			c.logger.Printf("Warning: skipping row %d for %s: %v", line, symbol, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func barFromRecord(symbol string, record []string, cols map[string]int) (*models.DailyBar, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := util.ParseDay(field("date"))
	if err != nil {
		return nil, fmt.Errorf("bad date %q", field("date"))
	}

	prices := make(map[string]float64, 4)
	for _, name := range []string{"open", "high", "low", "close"} {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q", name, field(name))
		}
		prices[name] = v
	}

	var volume int64
	if raw := field("volume"); raw != "" {
		// Some providers serve volume as a float.
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("bad volume %q", raw)
		}
		volume = int64(v)
	}

	return &models.DailyBar{
		Symbol: symbol,
		Date:   date,
		Open:   prices["open"],
		High:   prices["high"],
		Low:    prices["low"],
		Close:  prices["close"],
		Volume: volume,
	}, nil
}
