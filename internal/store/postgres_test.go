package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nasdaq-ingest/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_UpsertTickers(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_tickers"}, []string{"slug"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "tickers" .+ ON CONFLICT DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT slug, id FROM tickers WHERE slug = ANY\(\$1\)`).
		WithArgs([]string{"aapl", "msft"}).
		WillReturnRows(pgxmock.NewRows([]string{"slug", "id"}).
			AddRow("aapl", int64(1)).
			AddRow("msft", int64(2)))

	ids, err := s.UpsertTickers(context.Background(), []string{"aapl", "msft"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"aapl": 1, "msft": 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreateInsider_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO insiders .+ ON CONFLICT \(ticker_id, name\) DO NOTHING RETURNING id`).
		WithArgs(int64(1), "John Doe").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, created, err := s.GetOrCreateInsider(context.Background(), 1, "John Doe")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreateInsider_Existing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// The conflict path returns no row from RETURNING; the follow-up lookup
	// resolves the existing id.
	mock.ExpectQuery(`INSERT INTO insiders .+ DO NOTHING RETURNING id`).
		WithArgs(int64(1), "John Doe").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id FROM insiders WHERE ticker_id = \$1 AND name = \$2`).
		WithArgs(int64(1), "John Doe").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, created, err := s.GetOrCreateInsider(context.Background(), 1, "John Doe")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertStockPrice_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	date := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	volume := int64(1000)
	price := model.StockPrice{
		Ticker: "aapl",
		Date:   date,
		Open:   decimal.NullDecimal{Decimal: decimal.RequireFromString("70.50"), Valid: true},
		Volume: &volume,
	}

	mock.ExpectExec(`INSERT INTO stock_prices .+ ON CONFLICT \(ticker_id, date\) DO NOTHING`).
		WithArgs(int64(1), date, "70.5", nil, nil, nil, int64(1000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.InsertStockPrice(context.Background(), 1, price)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertStockPrice_ConflictSkipped(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	date := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO stock_prices .+ DO NOTHING`).
		WithArgs(int64(1), date, nil, nil, nil, nil, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.InsertStockPrice(context.Background(), 1, model.StockPrice{Date: date})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertInsiderTrade_ConflictSkipped(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	date := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	shares := int64(500)
	trade := model.InsiderTrade{
		Date:            date,
		Relation:        "Officer",
		TransactionType: "Buy",
		OwnerType:       "direct",
		SharesTraded:    &shares,
	}

	mock.ExpectExec(`INSERT INTO insider_trades .+ ON CONFLICT DO NOTHING`).
		WithArgs(int64(7), date, "Officer", "Buy", "direct", int64(500), nil, nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.InsertInsiderTrade(context.Background(), 7, trade)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordImportRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := model.ImportRun{
		ID:         "run-1",
		Kind:       model.ImportKindTrades,
		StartedAt:  time.Now().UTC().Add(-time.Minute),
		FinishedAt: time.Now().UTC(),
		Inserted:   3,
		Skipped:    1,
	}

	mock.ExpectExec(`INSERT INTO import_runs`).
		WithArgs(run.ID, "insider_trades", run.StartedAt, run.FinishedAt, int64(3), int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordImportRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tickers`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
