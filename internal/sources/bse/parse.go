package bse

import (
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

var (
	// ErrNoTable means the page carried no table with data rows.
	ErrNoTable = errors.New("bse: no data table in page")

	issueIDRe = regexp.MustCompile(`(?i)[?&]id=(\d+)`)
)

// Column positions of the public issue list.
const (
	colSecurity  = 0
	colBoard     = 1
	colIssueType = 6
	colStatus    = 7
	minListCells = 8
)

// ParseDemandSchedule extracts the cell text of the demand-schedule
// table. When a page has several tables the one with the most rows of
// three or more cells wins; header and note rows are kept for the
// classifier to reject.
func ParseDemandSchedule(r io.Reader) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var (
		best      [][]string
		bestScore int
	)
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		// Nested layout tables repeat their children's rows.
		if table.Find("table").Length() > 0 {
			return
		}
		rows, score := tableCells(table)
		if score > bestScore {
			best, bestScore = rows, score
		}
	})

	if bestScore == 0 {
		return nil, ErrNoTable
	}
	return best, nil
}

func tableCells(table *goquery.Selection) ([][]string, int) {
	var (
		rows  [][]string
		score int
	)
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td, th")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			row = append(row, cellText(cell))
		})
		if len(row) >= 3 {
			score++
		}
		rows = append(rows, row)
	})
	return rows, score
}

// ParseLiveIssues reads the public issue list and returns the issues of
// type IPO with status Live. baseURL resolves relative detail links.
func ParseLiveIssues(r io.Reader, baseURL string) ([]domain.Offering, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	var (
		offerings []domain.Offering
		seen      = make(map[string]bool)
	)
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < minListCells {
			return
		}
		if !strings.EqualFold(cellText(cells.Eq(colIssueType)), "IPO") ||
			!strings.EqualFold(cellText(cells.Eq(colStatus)), "Live") {
			return
		}

		security := cells.Eq(colSecurity)
		href, ok := security.Find("a").Attr("href")
		if !ok {
			return
		}
		name := cellText(security)
		m := issueIDRe.FindStringSubmatch(href)
		if name == "" || m == nil {
			return
		}

		id := domain.Slug(name)
		if seen[id] {
			return
		}
		seen[id] = true

		detail := href
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			detail = base.ResolveReference(ref).String()
		}

		offerings = append(offerings, domain.Offering{
			ID:        id,
			Name:      name,
			Exchange:  domain.ExchangeBSE,
			Board:     boardOf(cellText(cells.Eq(colBoard))),
			SourceID:  m[1],
			DetailURL: detail,
		})
	})
	return offerings, nil
}

func boardOf(cell string) domain.Board {
	if strings.Contains(strings.ToUpper(cell), "SME") {
		return domain.BoardSME
	}
	return domain.BoardMainboard
}

// cellText is the visible text of a cell with whitespace, including
// non-breaking spaces, collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
