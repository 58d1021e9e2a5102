package exporter

import (
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// TotalLabel marks the grand-total row of each snapshot.
const TotalLabel = "TOTAL"

// HistoryHeaders are the column names of an exported history.
var HistoryHeaders = []string{
	"captured_at",
	"offering_id",
	"offering_name",
	"exchange",
	"board",
	"category",
	"shares_offered",
	"shares_bid",
	"subscription_ratio",
}

// HistoryRow is one exported line.
type HistoryRow struct {
	CapturedAt   time.Time
	OfferingID   string
	OfferingName string
	Exchange     domain.Exchange
	Board        domain.Board
	Category     string
	domain.CategoryFigures
}

// Strings renders the row as CSV cells. Capture time is written in IST.
func (r HistoryRow) Strings() []string {
	return []string{
		r.CapturedAt.In(storage.IST).Format("2006-01-02 15:04:05"),
		r.OfferingID,
		r.OfferingName,
		string(r.Exchange),
		string(r.Board),
		r.Category,
		formatInt(r.SharesOffered),
		formatInt(r.SharesBid),
		formatFloat(r.SubscriptionRatio),
	}
}

// HistoryTable flattens snapshots in the order given: each category in
// its insertion order, then the TOTAL row.
func HistoryTable(snaps []domain.SubscriptionSnapshot) []HistoryRow {
	var rows []HistoryRow
	for _, s := range snaps {
		base := HistoryRow{
			CapturedAt:   s.CapturedAt,
			OfferingID:   s.OfferingID,
			OfferingName: s.OfferingName,
			Exchange:     s.Exchange,
			Board:        s.Board,
		}
		for _, e := range s.Categories.Entries() {
			row := base
			row.Category = string(e.Category)
			row.CategoryFigures = e.CategoryFigures
			rows = append(rows, row)
		}
		total := base
		total.Category = TotalLabel
		total.CategoryFigures = s.Total
		rows = append(rows, total)
	}
	return rows
}

func historyRecords(snaps []domain.SubscriptionSnapshot) [][]string {
	table := HistoryTable(snaps)
	records := make([][]string, len(table))
	for i, r := range table {
		records[i] = r.Strings()
	}
	return records
}
