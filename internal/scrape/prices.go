package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/nasdaq-ingest/internal/model"
)

const (
	priceCellCount   = 6
	priceRowSelector = `#quotes_content_left_pnlAJAX table tbody tr`
)

// PriceParser parses the single-page price history of one ticker.
type PriceParser struct {
	client  *Client
	baseURL string
	dates   DateFallback
}

// NewPriceParser creates a PriceParser. The date fallback policy defaults to
// DateFallbackToday.
func NewPriceParser(client *Client, baseURL string) *PriceParser {
	return &PriceParser{client: client, baseURL: baseURL, dates: DateFallbackToday}
}

// WithDateFallback sets the date-parse fallback policy.
func (p *PriceParser) WithDateFallback(fb DateFallback) *PriceParser {
	p.dates = fb
	return p
}

func (p *PriceParser) pageURL(ticker string) string {
	return fmt.Sprintf("%s/symbol/%s/historical", p.baseURL, ticker)
}

// Parse fetches and extracts the price history for one ticker. Rows that do
// not match the expected six-cell shape are dropped; cells that do not parse
// degrade to null fields.
func (p *PriceParser) Parse(ctx context.Context, ticker string) ([]model.StockPrice, error) {
	body, err := p.client.Get(ctx, p.pageURL(ticker))
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	var prices []model.StockPrice
	for _, row := range tableRows(doc, priceRowSelector, priceCellCount) {
		dateText, _ := cellText(row[0])
		date, ok := parseDate(dateText, p.dates)
		if !ok {
			continue
		}
		openText, _ := cellText(row[1])
		highText, _ := cellText(row[2])
		lowText, _ := cellText(row[3])
		closeText, _ := cellText(row[4])
		volumeText, _ := cellText(row[5])

		prices = append(prices, model.StockPrice{
			Ticker: ticker,
			Date:   date,
			Open:   parseDecimal(openText),
			High:   parseDecimal(highText),
			Low:    parseDecimal(lowText),
			Close:  parseDecimal(closeText),
			Volume: parseInteger(volumeText),
		})
	}

	zap.L().Debug("parsed price history",
		zap.String("ticker", ticker),
		zap.Int("rows", len(prices)),
	)
	return prices, nil
}
