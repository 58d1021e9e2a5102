package dataprocessing

import (
	"regexp"
	"strings"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// RowKind is the classifier's verdict on a raw row.
type RowKind int

const (
	RowData RowKind = iota
	RowHeader
	RowTotal
	RowMalformed
)

// String returns the kind name used in logs and metrics.
func (k RowKind) String() string {
	switch k {
	case RowData:
		return "data"
	case RowHeader:
		return "header"
	case RowTotal:
		return "total"
	case RowMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// minPopulatedCells is the smallest row that can carry a label plus
// offered and bid figures.
const minPopulatedCells = 3

// ClassifiedRow is a raw row reduced to its label and positional numeric
// cells. The numeric cells are still text; coercion happens later.
type ClassifiedRow struct {
	Index   int
	Kind    RowKind
	Label   string
	Offered string
	Bid     string
	Ratio   string
	Shifted bool   // a serial-number column preceded the label
	Text    string // all cells joined, for diagnostics
}

var (
	// serialRe matches serial-number cells: "1", "2.", "2.1", "3)", "(a)", "iv".
	serialRe = regexp.MustCompile(`^(?:\d{1,3}(?:\.\d{1,2})*|\(?[a-z]\)|[ivx]{1,4})[.)]?$`)

	headerMarkers = []string{
		"no. of shares", "no.of shares", "no of shares",
		"shares offered", "shares bid", "shares reserved",
		"sr. no", "sr.no", "s. no", "s.no",
		"no. of times", "no.of times", "no of times",
		"investor category",
	}

	// institutionalKeywords keep labels such as "Total QIB" out of the
	// totals bucket.
	institutionalKeywords = []string{"institutional", "qib", "nii"}
)

// Classifier splits a table into data, header, totals and malformed rows
// and tolerates an optional leading serial-number column.
type Classifier struct{}

// NewClassifier creates a row classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify classifies every row, preserving source order.
func (c *Classifier) Classify(rows []domain.RawRow) []ClassifiedRow {
	out := make([]ClassifiedRow, 0, len(rows))
	for i, row := range rows {
		out = append(out, c.ClassifyRow(i, row))
	}
	return out
}

// ClassifyRow classifies a single row.
func (c *Classifier) ClassifyRow(index int, row domain.RawRow) ClassifiedRow {
	cells := make([]string, len(row.Cells))
	populated := 0
	for i, cell := range row.Cells {
		cells[i] = strings.TrimSpace(cell)
		if cells[i] != "" {
			populated++
		}
	}

	cr := ClassifiedRow{Index: index, Text: strings.Join(cells, " | ")}

	if populated < minPopulatedCells {
		cr.Kind = RowMalformed
		return cr
	}

	if isHeaderRow(cells) {
		cr.Kind = RowHeader
		return cr
	}

	// Column 0 is either the label or a serial number that pushes every
	// field one column to the right.
	offset := 0
	if isSerialCell(cells[0]) || (cells[0] == "" && len(cells) > 1 && !IsNumericCell(cells[1])) {
		offset = 1
		cr.Shifted = true
	}

	cr.Label = cellAt(cells, offset)
	cr.Offered = cellAt(cells, offset+1)
	cr.Bid = cellAt(cells, offset+2)
	cr.Ratio = cellAt(cells, offset+3)

	if cr.Label == "" || IsNumericCell(cr.Label) {
		cr.Kind = RowMalformed
		return cr
	}

	if isTotalLabel(cr.Label) {
		cr.Kind = RowTotal
		return cr
	}

	cr.Kind = RowData
	return cr
}

// isHeaderRow reports rows made only of label-like text, or rows carrying
// a known column-heading marker.
func isHeaderRow(cells []string) bool {
	numeric := false
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		if IsNumericCell(cell) {
			numeric = true
			continue
		}
		lower := strings.ToLower(cell)
		for _, marker := range headerMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return !numeric
}

func isSerialCell(s string) bool {
	return s != "" && serialRe.MatchString(strings.ToLower(s))
}

func isTotalLabel(label string) bool {
	folded := FoldLabel(label)
	if !strings.Contains(folded, "total") {
		return false
	}
	return !containsAny(folded, institutionalKeywords)
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
