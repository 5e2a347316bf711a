package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nasdaq-ingest/internal/importer"
	"github.com/sells-group/nasdaq-ingest/internal/scrape"
)

var (
	importTickersPath string
	importWorkers     int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import price history and insider trades for a ticker list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tickersPath := cfg.Import.TickersFile
		if importTickersPath != "" {
			tickersPath = importTickersPath
		}
		workers := cfg.Import.Workers
		if importWorkers > 0 {
			workers = importWorkers
		}

		slugs, err := importer.ReadTickersFile(tickersPath)
		if err != nil {
			return err
		}
		if len(slugs) == 0 {
			return eris.Errorf("no tickers in %s", tickersPath)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		client := scrape.NewClient(scrape.ClientOptions{
			UserAgent:  cfg.Source.UserAgent,
			Timeout:    time.Duration(cfg.Source.TimeoutSecs) * time.Second,
			RatePerSec: cfg.Source.RatePerSec,
			RateBurst:  cfg.Source.RateBurst,
		})
		prices := scrape.NewPriceParser(client, cfg.Source.BaseURL)
		insiders := scrape.NewInsiderParser(client, cfg.Source.BaseURL).
			WithMaxPages(cfg.Source.MaxPages)

		im := importer.New(st, prices, insiders, workers)
		if err := im.PrepareTickers(ctx, slugs); err != nil {
			return err
		}

		if err := im.Run(ctx); err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.Int("tickers", len(slugs)),
			zap.Int("workers", workers),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importTickersPath, "tickers", "", "path to tickers file (one slug per line)")
	importCmd.Flags().IntVar(&importWorkers, "workers", 0, "worker count (overrides config)")
	rootCmd.AddCommand(importCmd)
}
