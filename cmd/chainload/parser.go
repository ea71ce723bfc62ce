package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/eddiefleurent/stamford_straddler/internal/models"
	"github.com/eddiefleurent/stamford_straddler/internal/util"
)

// requiredColumns must all be present in a snapshot header. Vendors pad and
// bracket their headers ("[C_LAST] "), so names are matched after
// normalization; column order is free.
var requiredColumns = []string{
	"quote_date", "expire_date", "strike", "underlying_last", "c_last", "p_last",
}

func normalizeHeader(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "[")
	name = strings.TrimSuffix(name, "]")
	return strings.ToLower(strings.TrimSpace(name))
}

// parseChainCSV reads one per-day snapshot file into chain rows. The four
// identity fields (dates, strike, underlying) must parse or the row is
// skipped with a warning; prices and greeks left blank by the vendor load as
// zero, which downstream selection already treats as unpriceable.
func parseChainCSV(r io.Reader, logger *log.Logger, name string) ([]*models.ChainRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", name, required)
		}
	}

	var rows []*models.ChainRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		row, err := rowFromRecord(record, cols)
		if err != nil {
			logger.Printf("Warning: %s line %d skipped: %v", name, line, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowFromRecord(record []string, cols map[string]int) (*models.ChainRow, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}
	numeric := func(name string) float64 {
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0
		}
		return v
	}
	count := func(name string) int64 {
		// Some vendors export volumes with a decimal point.
		v, err := strconv.ParseFloat(field(name), 64)
		if err != nil {
			return 0
		}
		return int64(v)
	}

	quoteDate, err := util.ParseDay(field("quote_date"))
	if err != nil {
		return nil, fmt.Errorf("quote_date: %w", err)
	}
	expiration, err := util.ParseDay(field("expire_date"))
	if err != nil {
		return nil, fmt.Errorf("expire_date: %w", err)
	}
	strike, err := strconv.ParseFloat(field("strike"), 64)
	if err != nil {
		return nil, fmt.Errorf("strike: %w", err)
	}
	underlying, err := strconv.ParseFloat(field("underlying_last"), 64)
	if err != nil {
		return nil, fmt.Errorf("underlying_last: %w", err)
	}

	row := &models.ChainRow{
		QuoteDate:         quoteDate,
		Expiration:        expiration,
		Strike:            strike,
		UnderlyingLast:    underlying,
		DTE:               numeric("dte"),
		StrikeDistance:    numeric("strike_distance"),
		StrikeDistancePct: numeric("strike_distance_pct"),
		Call: models.OptionQuote{
			Last:         numeric("c_last"),
			Bid:          numeric("c_bid"),
			Ask:          numeric("c_ask"),
			Volume:       count("c_volume"),
			OpenInterest: count("c_oi"),
			Delta:        numeric("c_delta"),
			Gamma:        numeric("c_gamma"),
			Theta:        numeric("c_theta"),
			Vega:         numeric("c_vega"),
			IV:           numeric("c_iv"),
		},
		Put: models.OptionQuote{
			Last:         numeric("p_last"),
			Bid:          numeric("p_bid"),
			Ask:          numeric("p_ask"),
			Volume:       count("p_volume"),
			OpenInterest: count("p_oi"),
			Delta:        numeric("p_delta"),
			Gamma:        numeric("p_gamma"),
			Theta:        numeric("p_theta"),
			Vega:         numeric("p_vega"),
			IV:           numeric("p_iv"),
		},
	}

	// Derivable columns are optional; recompute when the vendor omits them.
	if field("dte") == "" {
		row.DTE = float64(util.DaysBetween(quoteDate, expiration))
	}
	if field("strike_distance") == "" {
		row.StrikeDistance = math.Abs(strike - underlying)
	}
	if field("strike_distance_pct") == "" && underlying != 0 {
		row.StrikeDistancePct = row.StrikeDistance / underlying
	}
	return row, nil
}
