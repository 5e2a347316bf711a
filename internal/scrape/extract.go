package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}
	return doc, nil
}

// tableRows returns, in document order, the cell selections of every row under
// rowSelector carrying exactly cellCount data cells. Rows with any other shape
// (headers, separators, malformed markup) are dropped silently; a document
// with no matching rows is a valid empty result.
func tableRows(doc *goquery.Document, rowSelector string, cellCount int) [][]*goquery.Selection {
	var rows [][]*goquery.Selection
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() != cellCount {
			return
		}
		row := make([]*goquery.Selection, 0, cellCount)
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, td)
		})
		rows = append(rows, row)
	})
	return rows
}
