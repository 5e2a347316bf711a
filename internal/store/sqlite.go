package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nasdaq-ingest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs and
// integration tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tickers (
	id   INTEGER PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS stock_prices (
	id        INTEGER PRIMARY KEY,
	ticker_id INTEGER NOT NULL REFERENCES tickers(id),
	date      TEXT NOT NULL,
	open      TEXT,
	high      TEXT,
	low       TEXT,
	close     TEXT,
	volume    INTEGER,
	UNIQUE (ticker_id, date)
);

CREATE TABLE IF NOT EXISTS insiders (
	id        INTEGER PRIMARY KEY,
	ticker_id INTEGER NOT NULL REFERENCES tickers(id),
	name      TEXT NOT NULL,
	UNIQUE (ticker_id, name)
);

CREATE TABLE IF NOT EXISTS insider_trades (
	id               INTEGER PRIMARY KEY,
	insider_id       INTEGER NOT NULL REFERENCES insiders(id),
	date             TEXT NOT NULL,
	relation         TEXT NOT NULL DEFAULT '',
	transaction_type TEXT NOT NULL DEFAULT '',
	owner_type       TEXT NOT NULL DEFAULT '',
	shares_traded    INTEGER,
	last_price       TEXT,
	shares_held      INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_insider_trades ON insider_trades (
	insider_id, date, transaction_type,
	COALESCE(shares_traded, -1), COALESCE(last_price, -1), COALESCE(shares_held, -1)
);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	inserted    INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_prices_ticker ON stock_prices(ticker_id);
CREATE INDEX IF NOT EXISTS idx_insiders_ticker ON insiders(ticker_id);
CREATE INDEX IF NOT EXISTS idx_insider_trades_insider ON insider_trades(insider_id);
`

const sqliteDateLayout = "2006-01-02"

// Migrate applies the schema. Safe to run repeatedly.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertTickers creates missing slugs and returns the slug to id mapping for
// the requested set.
func (s *SQLiteStore) UpsertTickers(ctx context.Context, slugs []string) (map[string]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	ids := make(map[string]int64, len(slugs))
	for _, slug := range slugs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tickers (slug) VALUES (?)`, slug); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert ticker %s", slug)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM tickers WHERE slug = ?`, slug).Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "sqlite: get ticker %s", slug)
		}
		ids[slug] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit tx")
	}
	return ids, nil
}

// GetOrCreateInsider inserts the insider if absent, falling back to a lookup
// when the row already exists.
func (s *SQLiteStore) GetOrCreateInsider(ctx context.Context, tickerID int64, name string) (int64, bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO insiders (ticker_id, name) VALUES (?, ?)`,
		tickerID, name)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: insert insider")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: insert insider rows affected")
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM insiders WHERE ticker_id = ? AND name = ?`,
		tickerID, name).Scan(&id); err != nil {
		return 0, false, eris.Wrap(err, "sqlite: get insider")
	}
	return id, affected == 1, nil
}

// InsertStockPrice inserts one price row, reporting false when the
// (ticker, date) key already exists.
func (s *SQLiteStore) InsertStockPrice(ctx context.Context, tickerID int64, price model.StockPrice) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stock_prices (ticker_id, date, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tickerID, price.Date.Format(sqliteDateLayout),
		decimalArg(price.Open), decimalArg(price.High),
		decimalArg(price.Low), decimalArg(price.Close),
		intArg(price.Volume),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert stock price")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert stock price rows affected")
	}
	return affected == 1, nil
}

// InsertInsiderTrade inserts one trade row, reporting false when the trade's
// uniqueness key already exists.
func (s *SQLiteStore) InsertInsiderTrade(ctx context.Context, insiderID int64, trade model.InsiderTrade) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO insider_trades (insider_id, date, relation, transaction_type, owner_type, shares_traded, last_price, shares_held)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		insiderID, trade.Date.Format(sqliteDateLayout),
		trade.Relation, trade.TransactionType, trade.OwnerType,
		intArg(trade.SharesTraded), decimalArg(trade.LastPrice), intArg(trade.SharesHeld),
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert insider trade")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert insider trade rows affected")
	}
	return affected == 1, nil
}

// RecordImportRun stores the audit row for one import phase.
func (s *SQLiteStore) RecordImportRun(ctx context.Context, run model.ImportRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, kind, started_at, finished_at, inserted, skipped)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.StartedAt, run.FinishedAt, run.Inserted, run.Skipped,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: record import run")
	}
	return nil
}
