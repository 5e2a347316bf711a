package scrape

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/nasdaq-ingest/internal/model"
)

const (
	tradeCellCount    = 8
	tradeRowSelector  = `div.genTable table.certain-width tr`
	pagerLinkSelector = `ul.pager a.pagerlink`
)

// DefaultMaxPages bounds the documents fetched for one ticker's insider
// trades, including the first page. Pager markup on the source is occasionally
// self-referential or unbounded; the cap keeps a single ticker's parse finite.
const DefaultMaxPages = 10

// InsiderParser parses the paginated insider-trade history of one ticker.
type InsiderParser struct {
	client   *Client
	baseURL  string
	maxPages int
	dates    DateFallback
}

// NewInsiderParser creates an InsiderParser with the default page cap and
// DateFallbackToday.
func NewInsiderParser(client *Client, baseURL string) *InsiderParser {
	return &InsiderParser{
		client:   client,
		baseURL:  baseURL,
		maxPages: DefaultMaxPages,
		dates:    DateFallbackToday,
	}
}

// WithMaxPages overrides the per-ticker page cap.
func (p *InsiderParser) WithMaxPages(n int) *InsiderParser {
	if n > 0 {
		p.maxPages = n
	}
	return p
}

// WithDateFallback sets the date-parse fallback policy.
func (p *InsiderParser) WithDateFallback(fb DateFallback) *InsiderParser {
	p.dates = fb
	return p
}

func (p *InsiderParser) firstPageURL(ticker string) string {
	return fmt.Sprintf("%s/symbol/%s/insider-trades", p.baseURL, ticker)
}

// Parse fetches every discovered page for one ticker and extracts its insider
// trades. The page cache lives for exactly this invocation, so each URL is
// requested at most once even when the pager repeats it.
func (p *InsiderParser) Parse(ctx context.Context, ticker string) ([]model.InsiderTrade, error) {
	cache := newPageCache(p.client)

	pages, err := p.pageURLs(ctx, cache, p.firstPageURL(ticker))
	if err != nil {
		return nil, err
	}

	var trades []model.InsiderTrade
	for _, pageURL := range pages {
		body, err := cache.get(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		doc, err := parseDocument(body)
		if err != nil {
			return nil, err
		}
		for _, row := range tableRows(doc, tradeRowSelector, tradeCellCount) {
			dateText, _ := cellText(row[2])
			date, ok := parseDate(dateText, p.dates)
			if !ok {
				continue
			}
			name, _ := cellText(insiderNameCell(row[0]))
			relation, _ := cellText(row[1])
			transactionType, _ := cellText(row[3])
			ownerType, _ := cellText(row[4])
			sharesText, _ := cellText(row[5])
			priceText, _ := cellText(row[6])
			heldText, _ := cellText(row[7])

			trades = append(trades, model.InsiderTrade{
				Ticker:          ticker,
				InsiderName:     name,
				Date:            date,
				Relation:        relation,
				TransactionType: transactionType,
				OwnerType:       ownerType,
				SharesTraded:    parseInteger(sharesText),
				LastPrice:       parseDecimal(priceText),
				SharesHeld:      parseInteger(heldText),
			})
		}
	}

	zap.L().Debug("parsed insider trades",
		zap.String("ticker", ticker),
		zap.Int("pages", len(pages)),
		zap.Int("rows", len(trades)),
	)
	return trades, nil
}

// pageURLs discovers the full page set for a ticker from the first page's
// pager links. Links are deduplicated in discovery order and the total set is
// capped at maxPages; the first page is always included, first.
func (p *InsiderParser) pageURLs(ctx context.Context, cache *pageCache, first string) ([]string, error) {
	body, err := cache.get(ctx, first)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	pages := []string{first}
	seen := map[string]bool{first: true}
	doc.Find(pagerLinkSelector).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		target := resolveRef(first, href)
		if seen[target] || len(pages) >= p.maxPages {
			return
		}
		seen[target] = true
		pages = append(pages, target)
	})
	return pages, nil
}

// insiderNameCell returns the nested element carrying the insider name, or the
// cell itself when the markup is flat.
func insiderNameCell(cell *goquery.Selection) *goquery.Selection {
	if nested := cell.Children().First(); nested.Length() > 0 {
		return nested
	}
	return cell
}

// resolveRef resolves a pager href against the page it was discovered on.
func resolveRef(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		zap.L().Debug("unparseable pager href", zap.String("href", href))
		return href
	}
	return base.ResolveReference(ref).String()
}
