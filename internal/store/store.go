package store

import (
	"context"

	"github.com/sells-group/nasdaq-ingest/internal/model"
)

// Store defines the persistence operations the importer consumes. Inserts of
// price and trade records report whether a row was actually created; a false
// return means the record already existed and was skipped.
type Store interface {
	// Tickers
	// UpsertTickers creates any missing slugs and returns the slug to id
	// mapping for the full requested set.
	UpsertTickers(ctx context.Context, slugs []string) (map[string]int64, error)

	// Insiders
	// GetOrCreateInsider inserts the (ticker, name) insider if absent and
	// reports whether it was created.
	GetOrCreateInsider(ctx context.Context, tickerID int64, name string) (int64, bool, error)

	// Records
	InsertStockPrice(ctx context.Context, tickerID int64, price model.StockPrice) (bool, error)
	InsertInsiderTrade(ctx context.Context, insiderID int64, trade model.InsiderTrade) (bool, error)

	// Audit
	RecordImportRun(ctx context.Context, run model.ImportRun) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
