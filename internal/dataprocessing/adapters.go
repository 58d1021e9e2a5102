package dataprocessing

import (
	"strings"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// RowsFromCells adapts an HTML table (rows of cell text) to raw rows.
func RowsFromCells(table [][]string) []domain.RawRow {
	rows := make([]domain.RawRow, 0, len(table))
	for _, cells := range table {
		trimmed := make([]string, len(cells))
		for i, c := range cells {
			trimmed[i] = strings.TrimSpace(c)
		}
		rows = append(rows, domain.RawRow{Cells: trimmed})
	}
	return rows
}

// RowsFromRecords adapts JSON-API records to raw rows laid out as
// label, offered, bid, times.
func RowsFromRecords(records []domain.APIRecord) []domain.RawRow {
	rows := make([]domain.RawRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, domain.RawRow{Cells: []string{
			strings.TrimSpace(r.Category),
			r.SharesOffered,
			r.SharesBid,
			r.NoOfTimes,
		}})
	}
	return rows
}
