package scrape

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// DateFallback names the policy applied when a date cell does not parse.
type DateFallback int

const (
	// DateFallbackToday substitutes today's date for an unparseable one. This
	// matches the long-standing import behavior and is the default.
	DateFallbackToday DateFallback = iota
	// DateFallbackReject reports the date as unparseable (ok=false).
	DateFallbackReject
	// DateFallbackZero substitutes the zero time as a sentinel.
	DateFallbackZero
)

const dateLayout = "01/02/2006"

// cellText extracts the trimmed text of a cell. ok is false when the cell has
// no text content.
func cellText(cell *goquery.Selection) (string, bool) {
	text := strings.TrimSpace(cell.Text())
	if text == "" {
		return "", false
	}
	return text, true
}

// parseDate parses an MM/DD/YYYY cell. Failures resolve per the fallback
// policy; ok is false only under DateFallbackReject.
func parseDate(text string, fallback DateFallback) (time.Time, bool) {
	d, err := time.Parse(dateLayout, text)
	if err == nil {
		return d, true
	}
	switch fallback {
	case DateFallbackReject:
		return time.Time{}, false
	case DateFallbackZero:
		return time.Time{}, true
	default:
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
}

// parseDecimal parses a fixed-point decimal cell, tolerating thousands
// separators. Invalid input yields a null decimal, never an error.
func parseDecimal(text string) decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(text, ",", ""))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// parseInteger parses a non-negative integer cell, tolerating thousands
// separators. Invalid or negative input yields nil, never an error; volume and
// share counts have no meaningful negative values.
func parseInteger(text string) *int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
