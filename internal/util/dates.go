package util

import "time"

// ISODate is the calendar-day layout used for quote dates throughout the
// ledger and the options_data table.
const ISODate = "2006-01-02"

// Day truncates t to its UTC calendar day. All quote-date arithmetic works on
// day boundaries; intraday components of parsed timestamps are noise.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// DaysBetween returns the number of calendar days from 'from' to 'to',
// negative when 'to' precedes 'from'. Both are truncated to UTC days first.
func DaysBetween(from, to time.Time) int {
	f := Day(from)
	t := Day(to)
	return int(t.Sub(f).Hours() / 24)
}

// FormatDay renders t as an ISO calendar day (YYYY-MM-DD).
func FormatDay(t time.Time) string {
	return Day(t).Format(ISODate)
}

// ParseDay parses an ISO calendar day into a UTC midnight time.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(ISODate, s)
}
