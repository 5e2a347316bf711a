package importer

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadTickersFile reads a plain-text ticker list, one slug per line. Lines are
// trimmed and lowercased; blank lines are skipped.
func ReadTickersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open tickers file %s", path)
	}
	defer f.Close()

	var slugs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		slug := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if slug == "" {
			continue
		}
		slugs = append(slugs, slug)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "importer: read tickers file %s", path)
	}
	return slugs, nil
}
