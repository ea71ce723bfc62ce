package models

import "time"

// OptionQuote is one side (call or put) of a chain snapshot row.
type OptionQuote struct {
	Last         float64 `json:"last"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	Delta        float64 `json:"delta"`
	Gamma        float64 `json:"gamma"`
	Theta        float64 `json:"theta"`
	Vega         float64 `json:"vega"`
	IV           float64 `json:"iv"`
}

// Greeks copies the quote's sensitivities into leg-ready form.
func (q OptionQuote) Greeks() *Greeks {
	return &Greeks{Delta: q.Delta, Gamma: q.Gamma, Vega: q.Vega, Theta: q.Theta, IV: q.IV}
}

// ChainRow is one historical options-chain snapshot row: the call and the put
// at one strike for one (quote date, expiration). This is the engine's only
// market-data input; greeks arrive precomputed and are never derived here.
type ChainRow struct {
	QuoteDate         time.Time   `json:"quote_date"`
	Expiration        time.Time   `json:"expiration"`
	Strike            float64     `json:"strike"`
	UnderlyingLast    float64     `json:"underlying_last"`
	DTE               float64     `json:"dte"`
	StrikeDistance    float64     `json:"strike_distance"`
	StrikeDistancePct float64     `json:"strike_distance_pct"`
	Call              OptionQuote `json:"call"`
	Put               OptionQuote `json:"put"`
}

// StraddlePremium is the combined last price of the row's call and put.
func (r *ChainRow) StraddlePremium() float64 {
	return r.Call.Last + r.Put.Last
}

// StrikeQuote is the day's resolved last prices for one exact
// (strike, expiration) pair: the answer to a mark-to-market lookup.
type StrikeQuote struct {
	Underlying float64 `json:"underlying"`
	CallPrice  float64 `json:"call_price"`
	PutPrice   float64 `json:"put_price"`
}

// Premium is the straddle premium at this quote.
func (q *StrikeQuote) Premium() float64 {
	return q.CallPrice + q.PutPrice
}

// DailyBar is one daily OHLCV bar for an underlying or index symbol, used by
// the volatility-regime signal.
type DailyBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
