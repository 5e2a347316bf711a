package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/nasdaq-ingest/internal/db"
	"github.com/sells-group/nasdaq-ingest/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tickers (
	id   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS stock_prices (
	id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	ticker_id BIGINT NOT NULL REFERENCES tickers(id),
	date      DATE NOT NULL,
	open      NUMERIC(10,4),
	high      NUMERIC(10,4),
	low       NUMERIC(10,4),
	close     NUMERIC(10,4),
	volume    BIGINT,
	UNIQUE (ticker_id, date)
);

CREATE TABLE IF NOT EXISTS insiders (
	id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	ticker_id BIGINT NOT NULL REFERENCES tickers(id),
	name      TEXT NOT NULL,
	UNIQUE (ticker_id, name)
);

CREATE TABLE IF NOT EXISTS insider_trades (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	insider_id       BIGINT NOT NULL REFERENCES insiders(id),
	date             DATE NOT NULL,
	relation         TEXT NOT NULL DEFAULT '',
	transaction_type TEXT NOT NULL DEFAULT '',
	owner_type       TEXT NOT NULL DEFAULT '',
	shares_traded    BIGINT,
	last_price       NUMERIC(10,4),
	shares_held      BIGINT
);

-- NULL numerics participate in the uniqueness key; Postgres treats NULLs as
-- distinct, so the index coalesces them to a sentinel to keep re-imports of
-- partially parsed rows idempotent.
CREATE UNIQUE INDEX IF NOT EXISTS uq_insider_trades ON insider_trades (
	insider_id, date, transaction_type,
	COALESCE(shares_traded, -1), COALESCE(last_price, -1), COALESCE(shares_held, -1)
);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	inserted    BIGINT NOT NULL,
	skipped     BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_prices_ticker ON stock_prices(ticker_id);
CREATE INDEX IF NOT EXISTS idx_insiders_ticker ON insiders(ticker_id);
CREATE INDEX IF NOT EXISTS idx_insider_trades_insider ON insider_trades(insider_id);
`

// Migrate applies the schema. Safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertTickers bulk-creates missing slugs and returns the slug to id mapping
// for the requested set.
func (s *PostgresStore) UpsertTickers(ctx context.Context, slugs []string) (map[string]int64, error) {
	rows := make([][]any, 0, len(slugs))
	for _, slug := range slugs {
		rows = append(rows, []any{slug})
	}
	if _, err := db.BulkInsertIfAbsent(ctx, s.pool, db.InsertConfig{
		Table:   "tickers",
		Columns: []string{"slug"},
	}, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert tickers")
	}

	result, err := s.pool.Query(ctx,
		`SELECT slug, id FROM tickers WHERE slug = ANY($1)`, slugs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: select tickers")
	}
	defer result.Close()

	ids := make(map[string]int64, len(slugs))
	for result.Next() {
		var slug string
		var id int64
		if err := result.Scan(&slug, &id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ticker")
		}
		ids[slug] = id
	}
	if err := result.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate tickers")
	}
	return ids, nil
}

// GetOrCreateInsider inserts the insider if absent, falling back to a lookup
// when the row already exists.
func (s *PostgresStore) GetOrCreateInsider(ctx context.Context, tickerID int64, name string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO insiders (ticker_id, name) VALUES ($1, $2) ON CONFLICT (ticker_id, name) DO NOTHING RETURNING id`,
		tickerID, name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, eris.Wrap(err, "postgres: insert insider")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id FROM insiders WHERE ticker_id = $1 AND name = $2`,
		tickerID, name).Scan(&id)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: get insider")
	}
	return id, false, nil
}

// InsertStockPrice inserts one price row, reporting false when the
// (ticker, date) key already exists.
func (s *PostgresStore) InsertStockPrice(ctx context.Context, tickerID int64, price model.StockPrice) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO stock_prices (ticker_id, date, open, high, low, close, volume)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (ticker_id, date) DO NOTHING`,
		tickerID, price.Date,
		decimalArg(price.Open), decimalArg(price.High),
		decimalArg(price.Low), decimalArg(price.Close),
		intArg(price.Volume),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert stock price")
	}
	return tag.RowsAffected() == 1, nil
}

// InsertInsiderTrade inserts one trade row, reporting false when the trade's
// uniqueness key already exists.
func (s *PostgresStore) InsertInsiderTrade(ctx context.Context, insiderID int64, trade model.InsiderTrade) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO insider_trades (insider_id, date, relation, transaction_type, owner_type, shares_traded, last_price, shares_held)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT DO NOTHING`,
		insiderID, trade.Date, trade.Relation, trade.TransactionType, trade.OwnerType,
		intArg(trade.SharesTraded), decimalArg(trade.LastPrice), intArg(trade.SharesHeld),
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert insider trade")
	}
	return tag.RowsAffected() == 1, nil
}

// RecordImportRun stores the audit row for one import phase.
func (s *PostgresStore) RecordImportRun(ctx context.Context, run model.ImportRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, kind, started_at, finished_at, inserted, skipped)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, string(run.Kind), run.StartedAt, run.FinishedAt, run.Inserted, run.Skipped,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: record import run")
	}
	return nil
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func intArg(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
