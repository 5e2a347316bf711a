// Package importer orchestrates the fetch/parse worker pools and persists
// their output, deduplicating against existing storage.
package importer

import (
	"context"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nasdaq-ingest/internal/model"
	"github.com/sells-group/nasdaq-ingest/internal/pool"
	"github.com/sells-group/nasdaq-ingest/internal/scrape"
	"github.com/sells-group/nasdaq-ingest/internal/store"
)

// Importer imports price history and insider trades for a prepared ticker set.
type Importer struct {
	store    store.Store
	prices   *scrape.PriceParser
	insiders *scrape.InsiderParser
	workers  int
	tickers  map[string]int64
}

// New creates an Importer. workers is the pool size used by both import
// phases; values below 1 are treated as 1.
func New(st store.Store, prices *scrape.PriceParser, insiders *scrape.InsiderParser, workers int) *Importer {
	if workers < 1 {
		workers = 1
	}
	return &Importer{
		store:    st,
		prices:   prices,
		insiders: insiders,
		workers:  workers,
	}
}

// PrepareTickers creates any slugs not yet known to the store and caches the
// slug to id mapping for the import phases. Existing tickers are untouched.
func (im *Importer) PrepareTickers(ctx context.Context, slugs []string) error {
	deduped := dedupe(slugs)
	ids, err := im.store.UpsertTickers(ctx, deduped)
	if err != nil {
		return eris.Wrap(err, "importer: prepare tickers")
	}
	for _, slug := range deduped {
		if _, ok := ids[slug]; !ok {
			return eris.Errorf("importer: ticker %q missing after upsert", slug)
		}
	}
	im.tickers = ids
	zap.L().Info("tickers prepared", zap.Int("count", len(ids)))
	return nil
}

// Run imports both record kinds concurrently and waits for both to finish.
// Each phase's errors are independent; one phase failing does not stop the
// other.
func (im *Importer) Run(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := im.ImportStockPrices(ctx)
		return err
	})
	g.Go(func() error {
		_, err := im.ImportInsiderTrades(ctx)
		return err
	})
	return g.Wait()
}

// ImportStockPrices parses and persists price history for every prepared
// ticker. Records whose (ticker, date) key already exists are skipped
// silently. The returned run carries insert/skip counts even when some
// workers failed.
func (im *Importer) ImportStockPrices(ctx context.Context) (model.ImportRun, error) {
	run := newRun(model.ImportKindPrices)
	log := zap.L().With(zap.String("run", run.ID), zap.String("kind", string(run.Kind)))

	var inserted, skipped atomic.Int64
	sink := func(ctx context.Context, ticker string, records []model.StockPrice) error {
		tickerID, ok := im.tickers[ticker]
		if !ok {
			return eris.Errorf("importer: unknown ticker %q", ticker)
		}
		for _, price := range records {
			created, err := im.store.InsertStockPrice(ctx, tickerID, price)
			if err != nil {
				return eris.Wrapf(err, "importer: persist price for %s", ticker)
			}
			if created {
				inserted.Add(1)
			} else {
				skipped.Add(1)
			}
		}
		return nil
	}

	p := pool.New(im.prices.Parse, im.slugs(), im.workers, sink)
	p.Start(ctx)
	err := p.Wait()

	return im.finishRun(ctx, log, run, inserted.Load(), skipped.Load(), err)
}

// ImportInsiderTrades parses and persists insider trades for every prepared
// ticker. The insider entity is resolved (created on first reference) before
// each trade; trades whose uniqueness key already exists are skipped silently.
func (im *Importer) ImportInsiderTrades(ctx context.Context) (model.ImportRun, error) {
	run := newRun(model.ImportKindTrades)
	log := zap.L().With(zap.String("run", run.ID), zap.String("kind", string(run.Kind)))

	var inserted, skipped atomic.Int64
	sink := func(ctx context.Context, ticker string, records []model.InsiderTrade) error {
		tickerID, ok := im.tickers[ticker]
		if !ok {
			return eris.Errorf("importer: unknown ticker %q", ticker)
		}
		for _, trade := range records {
			insiderID, _, err := im.store.GetOrCreateInsider(ctx, tickerID, trade.InsiderName)
			if err != nil {
				return eris.Wrapf(err, "importer: resolve insider for %s", ticker)
			}
			created, err := im.store.InsertInsiderTrade(ctx, insiderID, trade)
			if err != nil {
				return eris.Wrapf(err, "importer: persist trade for %s", ticker)
			}
			if created {
				inserted.Add(1)
			} else {
				skipped.Add(1)
			}
		}
		return nil
	}

	p := pool.New(im.insiders.Parse, im.slugs(), im.workers, sink)
	p.Start(ctx)
	err := p.Wait()

	return im.finishRun(ctx, log, run, inserted.Load(), skipped.Load(), err)
}

// slugs returns the prepared tickers in stable order so chunk assignment is
// deterministic across phases.
func (im *Importer) slugs() []string {
	return slices.Sorted(maps.Keys(im.tickers))
}

func (im *Importer) finishRun(ctx context.Context, log *zap.Logger, run model.ImportRun, inserted, skipped int64, poolErr error) (model.ImportRun, error) {
	run.FinishedAt = time.Now().UTC()
	run.Inserted = inserted
	run.Skipped = skipped

	if err := im.store.RecordImportRun(ctx, run); err != nil {
		log.Warn("failed to record import run", zap.Error(err))
	}

	if poolErr != nil {
		log.Error("import finished with worker errors",
			zap.Int64("inserted", inserted),
			zap.Int64("skipped", skipped),
			zap.Error(poolErr),
		)
		return run, poolErr
	}
	log.Info("import finished",
		zap.Int64("inserted", inserted),
		zap.Int64("skipped", skipped),
	)
	return run, nil
}

func newRun(kind model.ImportKind) model.ImportRun {
	return model.ImportRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
}

func dedupe(slugs []string) []string {
	seen := make(map[string]bool, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	return out
}
