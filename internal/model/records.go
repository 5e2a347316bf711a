// Package model defines the typed records produced by the scrape parsers and
// consumed by the store.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is a tradable instrument, identified by its lowercase slug.
type Ticker struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// StockPrice is one day of price history for a ticker. Price fields are null
// when the source cell could not be parsed; uniqueness is (ticker, date).
type StockPrice struct {
	Ticker string              `json:"ticker"`
	Date   time.Time           `json:"date"`
	Open   decimal.NullDecimal `json:"open"`
	High   decimal.NullDecimal `json:"high"`
	Low    decimal.NullDecimal `json:"low"`
	Close  decimal.NullDecimal `json:"close"`
	Volume *int64              `json:"volume"`
}

// Insider is a named insider scoped to one ticker. The same person trading two
// different symbols is two insiders.
type Insider struct {
	ID       int64  `json:"id"`
	TickerID int64  `json:"ticker_id"`
	Name     string `json:"name"`
}

// InsiderTrade is one reported insider transaction. Uniqueness is
// (insider, date, transaction_type, shares_traded, last_price, shares_held).
type InsiderTrade struct {
	Ticker          string              `json:"ticker"`
	InsiderName     string              `json:"insider_name"`
	Date            time.Time           `json:"date"`
	Relation        string              `json:"relation"`
	TransactionType string              `json:"transaction_type"`
	OwnerType       string              `json:"owner_type"`
	SharesTraded    *int64              `json:"shares_traded"`
	LastPrice       decimal.NullDecimal `json:"last_price"`
	SharesHeld      *int64              `json:"shares_held"`
}

// ImportKind names one of the two record kinds an import run processes.
type ImportKind string

const (
	ImportKindPrices ImportKind = "stock_prices"
	ImportKindTrades ImportKind = "insider_trades"
)

// ImportRun is the audit row recorded for one import phase.
type ImportRun struct {
	ID         string     `json:"id"`
	Kind       ImportKind `json:"kind"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Inserted   int64      `json:"inserted"`
	Skipped    int64      `json:"skipped"`
}
